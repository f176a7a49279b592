// Package model defines the core data structures for feedhub.
package model

import (
	"errors"
	"time"
)

// Fetch status markers recorded on a feed after each fetch cycle.
const (
	StatusSuccess     = "success"
	StatusFetchFailed = "fetch failed"
	StatusParseFailed = "parse failed"
)

// Feed represents an RSS/Atom subscription source.
type Feed struct {
	ID                   int64      `json:"id"`
	URL                  string     `json:"url"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	Category             string     `json:"category,omitempty"`
	IsActive             bool       `json:"is_active"`
	FetchIntervalMinutes int        `json:"fetch_interval_minutes"`
	LastFetchAt          *time.Time `json:"last_fetch_at,omitempty"`
	LastAutoFetchAt      *time.Time `json:"last_auto_fetch_at,omitempty"`
	LastFetchStatus      string     `json:"last_fetch_status,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Validate checks if the feed has required fields.
func (f *Feed) Validate() error {
	if f.URL == "" {
		return errors.New("feed URL is required")
	}
	return nil
}

// Article represents a single persisted article owned by one feed.
// URL holds the entry's actual link; lookups during reconciliation may
// use the entry guid instead, which is why the two are distinct.
type Article struct {
	ID        int64      `json:"id"`
	FeedID    int64      `json:"feed_id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Author    string     `json:"author,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Content   string     `json:"content,omitempty"`
	PubDate   *time.Time `json:"pub_date,omitempty"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsUnread returns true if the article hasn't been read.
func (a *Article) IsUnread() bool {
	return !a.IsRead
}

// Age returns how long ago the article was published, or zero when the
// feed never declared a publication date.
func (a *Article) Age() time.Duration {
	if a.PubDate == nil {
		return 0
	}
	return time.Since(*a.PubDate)
}
