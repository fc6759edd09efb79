package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertRun records a completed news fetch.
func (db *DB) InsertRun(r RunReport) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO fetch_runs (window_from, window_to, language, source, article_count, new_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.From.UTC().Format(timeLayout), r.To.UTC().Format(timeLayout), r.Language,
		nullString(r.Source), r.ArticleCount, r.NewCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLastRun returns the most recent fetch, or nil if none was recorded.
func (db *DB) GetLastRun() (*RunReport, error) {
	row := db.conn.QueryRow(
		`SELECT id, window_from, window_to, language, source, article_count, new_count, ran_at
		FROM fetch_runs ORDER BY id DESC LIMIT 1`,
	)

	var r RunReport
	var from, to string
	var source *string
	if err := row.Scan(&r.ID, &from, &to, &r.Language, &source, &r.ArticleCount, &r.NewCount, &r.RanAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.From, _ = time.Parse(timeLayout, from)
	r.To, _ = time.Parse(timeLayout, to)
	if source != nil {
		r.Source = *source
	}
	return &r, nil
}

// SaveDocument stores a processed PDF and returns its id.
func (db *DB) SaveDocument(d Document) (int64, error) {
	var analysis *string
	if d.Analysis != nil {
		data, err := json.Marshal(d.Analysis)
		if err != nil {
			return 0, err
		}
		s := string(data)
		analysis = &s
	}

	result, err := db.conn.Exec(
		`INSERT INTO documents (name, page_count, word_count, text, analysis) VALUES (?, ?, ?, ?, ?)`,
		d.Name, d.PageCount, d.WordCount, d.Text, analysis,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListDocuments returns processed PDFs, newest first.
func (db *DB) ListDocuments(limit int) ([]Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		`SELECT id, name, page_count, word_count, text, analysis, processed_at
		FROM documents ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var analysis *string
		if err := rows.Scan(&d.ID, &d.Name, &d.PageCount, &d.WordCount, &d.Text, &analysis, &d.ProcessedAt); err != nil {
			return nil, err
		}
		if analysis != nil {
			if err := json.Unmarshal([]byte(*analysis), &d.Analysis); err != nil {
				return nil, err
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM articles", &s.TotalArticles},
		{"SELECT COUNT(*) FROM article_analyses", &s.EnrichedArticles},
		{"SELECT COUNT(*) FROM bookmarks", &s.Bookmarked},
		{"SELECT COUNT(DISTINCT source) FROM articles", &s.Sources},
		{"SELECT COUNT(DISTINCT language) FROM articles", &s.Languages},
		{"SELECT COUNT(*) FROM fetch_runs", &s.Runs},
		{"SELECT COUNT(*) FROM documents", &s.Documents},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
