// Package store provides SQLite database operations for feedhub.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedhub/model"
	_ "modernc.org/sqlite"
)

// ErrFeedNotFound is returned when a feed lookup matches no row.
var ErrFeedNotFound = errors.New("feed not found")

// ErrArticleNotFound is returned when an article lookup matches no row.
var ErrArticleNotFound = errors.New("article not found")

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting every query method run either directly or inside Transact.
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store manages the SQLite database.
type Store struct {
	db   dbtx
	root *sql.DB // nil for a transaction-scoped Store
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, root: db}

	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

// Transact runs fn against a transaction-scoped Store, committing when
// fn returns nil and rolling back otherwise. Calls on an already
// transaction-scoped Store just run fn directly.
func (s *Store) Transact(fn func(tx *Store) error) error {
	if s.root == nil {
		return fn(s)
	}

	tx, err := s.root.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		title TEXT,
		description TEXT,
		category TEXT,
		is_active INTEGER DEFAULT 1,
		fetch_interval_minutes INTEGER DEFAULT 60,
		last_fetch_at INTEGER,
		last_auto_fetch_at INTEGER,
		last_fetch_status TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_id INTEGER NOT NULL,
		title TEXT,
		url TEXT NOT NULL,
		author TEXT,
		summary TEXT,
		content TEXT,
		pub_date INTEGER,
		is_read INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (feed_id) REFERENCES feeds(id) ON DELETE CASCADE,
		UNIQUE(feed_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_is_read ON articles(is_read);
	CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const feedColumns = `id, url, title, description, category, is_active, fetch_interval_minutes,
	last_fetch_at, last_auto_fetch_at, last_fetch_status, created_at, updated_at`

// SaveFeed saves a feed to the database.
// If the feed has an ID of 0, it will be inserted. Otherwise, it will be updated.
func (s *Store) SaveFeed(f *model.Feed) error {
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	if f.FetchIntervalMinutes == 0 {
		f.FetchIntervalMinutes = 60
	}

	if f.ID == 0 {
		result, err := s.db.Exec(
			`INSERT INTO feeds (url, title, description, category, is_active, fetch_interval_minutes,
				last_fetch_at, last_auto_fetch_at, last_fetch_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.URL, f.Title, f.Description, f.Category, boolToInt(f.IsActive), f.FetchIntervalMinutes,
			timeToUnix(f.LastFetchAt), timeToUnix(f.LastAutoFetchAt), f.LastFetchStatus,
			f.CreatedAt.Unix(), f.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert feed: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		f.ID = id
		return nil
	}

	_, err := s.db.Exec(
		`UPDATE feeds SET url = ?, title = ?, description = ?, category = ?, is_active = ?,
			fetch_interval_minutes = ?, last_fetch_at = ?, last_auto_fetch_at = ?,
			last_fetch_status = ?, updated_at = ? WHERE id = ?`,
		f.URL, f.Title, f.Description, f.Category, boolToInt(f.IsActive), f.FetchIntervalMinutes,
		timeToUnix(f.LastFetchAt), timeToUnix(f.LastAutoFetchAt), f.LastFetchStatus,
		f.UpdatedAt.Unix(), f.ID,
	)
	return err
}

// GetFeed retrieves a feed by ID.
func (s *Store) GetFeed(id int64) (*model.Feed, error) {
	row := s.db.QueryRow("SELECT "+feedColumns+" FROM feeds WHERE id = ?", id)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

// GetAllFeeds retrieves all feeds.
func (s *Store) GetAllFeeds() ([]*model.Feed, error) {
	return s.queryFeeds("SELECT " + feedColumns + " FROM feeds ORDER BY id")
}

// ListActiveFeeds retrieves the feeds eligible for scheduled fetching.
func (s *Store) ListActiveFeeds() ([]*model.Feed, error) {
	return s.queryFeeds("SELECT " + feedColumns + " FROM feeds WHERE is_active = 1 ORDER BY id")
}

func (s *Store) queryFeeds(query string, args ...interface{}) ([]*model.Feed, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// DeleteFeed deletes a feed and its articles. Articles are removed
// explicitly because the driver does not enforce foreign keys unless
// asked to per connection.
func (s *Store) DeleteFeed(id int64) error {
	return s.Transact(func(tx *Store) error {
		if _, err := tx.db.Exec("DELETE FROM articles WHERE feed_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete feed articles: %w", err)
		}
		if _, err := tx.db.Exec("DELETE FROM feeds WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete feed: %w", err)
		}
		return nil
	})
}

const articleColumns = `id, feed_id, title, url, author, summary, content, pub_date, is_read, created_at, updated_at`

// FindArticle looks up an article by feed and URL. It returns
// (nil, nil) when no article matches, so callers can distinguish a
// miss from a storage failure.
func (s *Store) FindArticle(feedID int64, url string) (*model.Article, error) {
	row := s.db.QueryRow(
		"SELECT "+articleColumns+" FROM articles WHERE feed_id = ? AND url = ?",
		feedID, url,
	)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	return article, nil
}

// CreateArticle inserts a new article and sets its ID.
func (s *Store) CreateArticle(a *model.Article) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	result, err := s.db.Exec(
		`INSERT INTO articles (feed_id, title, url, author, summary, content, pub_date, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FeedID, a.Title, a.URL, a.Author, a.Summary, a.Content,
		timeToUnix(a.PubDate), boolToInt(a.IsRead), a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	a.ID = id
	return nil
}

// UpdateArticle updates an existing article's content fields in place,
// preserving its primary key and read state.
func (s *Store) UpdateArticle(a *model.Article) error {
	a.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE articles SET title = ?, author = ?, summary = ?, content = ?, pub_date = ?, updated_at = ?
		WHERE id = ?`,
		a.Title, a.Author, a.Summary, a.Content, timeToUnix(a.PubDate), a.UpdatedAt.Unix(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

// GetArticle retrieves an article by ID.
func (s *Store) GetArticle(id int64) (*model.Article, error) {
	row := s.db.QueryRow("SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// GetArticles retrieves articles with optional filtering and pagination.
func (s *Store) GetArticles(opts QueryOptions) ([]*model.Article, error) {
	query := "SELECT " + articleColumns + " FROM articles WHERE 1=1"
	args := []interface{}{}

	if opts.FeedID > 0 {
		query += " AND feed_id = ?"
		args = append(args, opts.FeedID)
	}

	if opts.UnreadOnly {
		query += " AND is_read = 0"
	}

	if opts.SinceTime != nil {
		query += " AND pub_date >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY pub_date DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

// CountArticles returns the number of articles belonging to a feed.
func (s *Store) CountArticles(feedID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM articles WHERE feed_id = ?", feedID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// MarkArticleRead marks an article as read or unread.
func (s *Store) MarkArticleRead(id int64, isRead bool) error {
	_, err := s.db.Exec("UPDATE articles SET is_read = ? WHERE id = ?", boolToInt(isRead), id)
	return err
}

// DeleteArticlesOlderThan bulk-deletes articles created before cutoff
// and returns the number of rows removed.
func (s *Store) DeleteArticlesOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM articles WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old articles: %w", err)
	}
	return result.RowsAffected()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(sc scanner) (*model.Feed, error) {
	feed := &model.Feed{}
	var isActive int
	var lastFetch, lastAutoFetch sql.NullInt64
	var createdAt, updatedAt int64

	err := sc.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Description, &feed.Category,
		&isActive, &feed.FetchIntervalMinutes, &lastFetch, &lastAutoFetch,
		&feed.LastFetchStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.IsActive = intToBool(isActive)
	feed.LastFetchAt = unixToTimePtr(lastFetch)
	feed.LastAutoFetchAt = unixToTimePtr(lastAutoFetch)
	feed.CreatedAt = time.Unix(createdAt, 0)
	feed.UpdatedAt = time.Unix(updatedAt, 0)
	return feed, nil
}

func scanArticle(sc scanner) (*model.Article, error) {
	article := &model.Article{}
	var pubDate sql.NullInt64
	var isRead int
	var createdAt, updatedAt int64

	err := sc.Scan(
		&article.ID, &article.FeedID, &article.Title, &article.URL, &article.Author,
		&article.Summary, &article.Content, &pubDate, &isRead, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	article.PubDate = unixToTimePtr(pubDate)
	article.IsRead = intToBool(isRead)
	article.CreatedAt = time.Unix(createdAt, 0)
	article.UpdatedAt = time.Unix(updatedAt, 0)
	return article, nil
}

// Helper functions for boolean<->int conversion (SQLite doesn't have BOOLEAN type)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

func timeToUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
