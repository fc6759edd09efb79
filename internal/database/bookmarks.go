package database

// SetBookmark marks or unmarks an article.
func (db *DB) SetBookmark(articleID string, on bool) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireArticle(tx, articleID); err != nil {
		return err
	}
	if on {
		_, err = tx.Exec("INSERT OR IGNORE INTO bookmarks (article_id) VALUES (?)", articleID)
	} else {
		_, err = tx.Exec("DELETE FROM bookmarks WHERE article_id = ?", articleID)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ToggleBookmark flips the bookmark flag and returns the new state.
func (db *DB) ToggleBookmark(articleID string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := requireArticle(tx, articleID); err != nil {
		return false, err
	}

	res, err := tx.Exec("DELETE FROM bookmarks WHERE article_id = ?", articleID)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		if _, err := tx.Exec("INSERT INTO bookmarks (article_id) VALUES (?)", articleID); err != nil {
			return false, err
		}
	}
	return removed == 0, tx.Commit()
}
