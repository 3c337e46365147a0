package store

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a SQLite-backed FeedStore, grounded on the teacher's
// internal/database DB type. Entry hashes are stored as a newline-joined
// blob since spec §3 only requires them to be an ordered, opaque sequence.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (creating if needed) a SQLite-backed FeedStore at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_loc=auto")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &SQLStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS feeds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link TEXT UNIQUE NOT NULL,
		title TEXT,
		etag TEXT,
		last_modified TEXT,
		updated_at DATETIME,
		entry_hashes TEXT,
		error_count INTEGER DEFAULT 0,
		next_check_time DATETIME,
		interval_minutes INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS subs (
		user_id INTEGER NOT NULL,
		feed_id INTEGER NOT NULL,
		state INTEGER DEFAULT 1,
		title TEXT,
		notify BOOLEAN DEFAULT 1,
		lang TEXT DEFAULT 'en',
		PRIMARY KEY (user_id, feed_id)
	);`)
	return err
}

func (s *SQLStore) GetByID(id int) (*Feed, error) {
	row := s.db.QueryRow(`SELECT id, link, title, etag, last_modified, updated_at,
		entry_hashes, error_count, next_check_time, interval_minutes FROM feeds WHERE id = ?`, id)
	return scanFeed(row)
}

func (s *SQLStore) FilterIDs(ids []int) ([]*Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(`SELECT id, link, title, etag, last_modified, updated_at,
		entry_hashes, error_count, next_check_time, interval_minutes
		FROM feeds WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Feed
	for rows.Next() {
		f, err := scanFeedRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLStore) Save(feed *Feed, fields UpdateFields) error {
	if !fields.Any() {
		return nil
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if fields.ETag {
		sets = append(sets, "etag = ?")
		args = append(args, feed.ETag)
	}
	if fields.LastModified {
		sets = append(sets, "last_modified = ?")
		args = append(args, feed.LastModified)
	}
	if fields.UpdatedAt {
		sets = append(sets, "updated_at = ?")
		args = append(args, feed.UpdatedAt)
	}
	if fields.EntryHashes {
		sets = append(sets, "entry_hashes = ?")
		args = append(args, strings.Join(feed.EntryHashes, "\n"))
	}
	if fields.ErrorCount {
		sets = append(sets, "error_count = ?")
		args = append(args, feed.ErrorCount)
	}
	if fields.NextCheckTime {
		sets = append(sets, "next_check_time = ?")
		if feed.NextCheckTime.IsZero() {
			args = append(args, nil)
		} else {
			args = append(args, feed.NextCheckTime)
		}
	}
	if fields.Title {
		sets = append(sets, "title = ?")
		args = append(args, feed.Title)
	}

	args = append(args, feed.ID)
	_, err := s.db.Exec(`UPDATE feeds SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func (s *SQLStore) ActiveSubs(feedID int) ([]*Sub, error) {
	return s.querySubs(`SELECT user_id, feed_id, state, title, notify, lang
		FROM subs WHERE feed_id = ? AND state = 1`, feedID)
}

func (s *SQLStore) AllSubs(feedID int) ([]*Sub, error) {
	return s.querySubs(`SELECT user_id, feed_id, state, title, notify, lang
		FROM subs WHERE feed_id = ?`, feedID)
}

func (s *SQLStore) querySubs(query string, feedID int) ([]*Sub, error) {
	rows, err := s.db.Query(query, feedID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Sub
	for rows.Next() {
		var sub Sub
		if err := rows.Scan(&sub.UserID, &sub.FeedID, &sub.State, &sub.Title, &sub.Notify, &sub.Lang); err != nil {
			return nil, err
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// DueFeedIDs returns every feed id whose next_check_time has passed or is
// unset.
func (s *SQLStore) DueFeedIDs(now time.Time) ([]int, error) {
	rows, err := s.db.Query(`SELECT id FROM feeds WHERE next_check_time IS NULL OR next_check_time <= ?`, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row *sql.Row) (*Feed, error) {
	return scanFeedRows(row)
}

func scanFeedRows(row rowScanner) (*Feed, error) {
	var f Feed
	var etag, lastModified, hashes sql.NullString
	var nextCheck sql.NullTime
	var updatedAt sql.NullTime

	err := row.Scan(&f.ID, &f.Link, &f.Title, &etag, &lastModified, &updatedAt,
		&hashes, &f.ErrorCount, &nextCheck, &f.Interval)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	f.ETag = etag.String
	f.LastModified = lastModified.String
	if updatedAt.Valid {
		f.UpdatedAt = updatedAt.Time
	}
	if nextCheck.Valid {
		f.NextCheckTime = nextCheck.Time
	}
	if hashes.String != "" {
		f.EntryHashes = strings.Split(hashes.String, "\n")
	}
	return &f, nil
}
