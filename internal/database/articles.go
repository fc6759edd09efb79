package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// ErrNotFound is returned when an operation targets an unknown article.
var ErrNotFound = errors.New("article not found")

// timeLayout keeps stored timestamps sortable as text.
const timeLayout = time.RFC3339

var articleColumns = []string{
	"a.id", "a.title", "a.content", "a.summary", "a.source", "a.published_at",
	"a.topics", "a.language", "a.url", "a.image_url",
	"an.analysis", "b.article_id IS NOT NULL",
}

func selectArticles() sq.SelectBuilder {
	return sq.Select(articleColumns...).
		From("articles a").
		LeftJoin("article_analyses an ON an.article_id = a.id").
		LeftJoin("bookmarks b ON b.article_id = a.id")
}

// SaveArticles upserts a batch by id. Bookmarks and stored analyses survive a
// re-save; stored content is only replaced by longer content, so full text
// fetched earlier is not overwritten by a feed placeholder. Articles carrying
// an Analysis have it stored as well.
func (db *DB) SaveArticles(articles []model.Article) (*SaveResult, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &SaveResult{}
	for _, a := range articles {
		var exists int
		err := tx.QueryRow("SELECT COUNT(*) FROM articles WHERE id = ?", a.ID).Scan(&exists)
		if err != nil {
			return nil, err
		}

		topics, err := json.Marshal(a.Topics)
		if err != nil {
			return nil, err
		}

		query, args, err := sq.Insert("articles").
			Columns("id", "title", "content", "summary", "source", "published_at", "topics", "language", "url", "image_url").
			Values(a.ID, a.Title, a.Content, a.Summary, a.Source, a.Date.UTC().Format(timeLayout),
				string(topics), a.Language, nullString(a.URL), nullString(a.ImageURL)).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				content = CASE WHEN length(excluded.content) > length(articles.content) THEN excluded.content ELSE articles.content END,
				summary = excluded.summary,
				source = excluded.source,
				published_at = excluded.published_at,
				topics = excluded.topics,
				language = excluded.language,
				url = excluded.url,
				image_url = excluded.image_url`).
			ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return nil, fmt.Errorf("saving article %s: %w", a.ID, err)
		}

		if a.Analysis != nil {
			if err := upsertAnalysis(tx, a.ID, *a.Analysis, a.Language); err != nil {
				return nil, err
			}
		}

		if exists > 0 {
			result.Updated++
		} else {
			result.New++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveAnalysis stores the enrichment for an existing article.
func (db *DB) SaveAnalysis(articleID string, analysis model.Analysis, language string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireArticle(tx, articleID); err != nil {
		return err
	}
	if err := upsertAnalysis(tx, articleID, analysis, language); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertAnalysis(tx *sql.Tx, articleID string, analysis model.Analysis, language string) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO article_analyses (article_id, analysis, language, analyzed_at)
		VALUES (?, ?, ?, datetime('now'))`,
		articleID, string(data), language,
	)
	if err != nil {
		return fmt.Errorf("saving analysis for %s: %w", articleID, err)
	}
	return nil
}

// GetArticle returns a single article by ID, or nil if it does not exist.
func (db *DB) GetArticle(articleID string) (*model.Article, error) {
	query, args, err := selectArticles().Where(sq.Eq{"a.id": articleID}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

// ListArticles returns stored articles matching f, newest first.
func (db *DB) ListArticles(f ArticleFilter) ([]model.Article, error) {
	q := selectArticles().OrderBy("a.published_at DESC", "a.id")

	if topics := concreteTopics(f.Topics); len(topics) > 0 {
		or := sq.Or{}
		for _, t := range topics {
			or = append(or, sq.Like{"a.topics": `%"` + string(t) + `"%`})
		}
		q = q.Where(or)
	}
	if !f.From.IsZero() {
		q = q.Where(sq.GtOrEq{"a.published_at": f.From.UTC().Format(timeLayout)})
	}
	if !f.To.IsZero() {
		q = q.Where(sq.LtOrEq{"a.published_at": f.To.UTC().Format(timeLayout)})
	}
	if f.Language != "" {
		q = q.Where(sq.Eq{"a.language": f.Language})
	}
	if f.Bookmarked {
		q = q.Where("b.article_id IS NOT NULL")
	}
	if f.Enriched {
		q = q.Where("an.article_id IS NOT NULL")
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		pattern := "%" + s + "%"
		q = q.Where(sq.Or{sq.Like{"a.title": pattern}, sq.Like{"a.content": pattern}})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			q = q.Offset(uint64(f.Offset))
		}
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// concreteTopics drops the wildcard; a filter containing it matches everything.
func concreteTopics(topics []model.Topic) []model.Topic {
	var out []model.Topic
	for _, t := range topics {
		if t == model.TopicAll {
			return nil
		}
		out = append(out, t)
	}
	return out
}

func requireArticle(tx *sql.Tx, articleID string) error {
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM articles WHERE id = ?", articleID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", articleID, ErrNotFound)
	}
	return nil
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		var a model.Article
		var published, topics string
		var url, imageURL, analysis *string
		var bookmarked int
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.Source, &published,
			&topics, &a.Language, &url, &imageURL, &analysis, &bookmarked); err != nil {
			return nil, err
		}

		a.Date, _ = time.Parse(timeLayout, published)
		if err := json.Unmarshal([]byte(topics), &a.Topics); err != nil {
			return nil, fmt.Errorf("decoding topics of %s: %w", a.ID, err)
		}
		if url != nil {
			a.URL = *url
		}
		if imageURL != nil {
			a.ImageURL = *imageURL
		}
		if analysis != nil {
			var an model.Analysis
			if err := json.Unmarshal([]byte(*analysis), &an); err != nil {
				return nil, fmt.Errorf("decoding analysis of %s: %w", a.ID, err)
			}
			a.Analysis = &an
			a.Summary = an.Summary
		}
		a.Bookmarked = bookmarked != 0
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
