package ingest

import (
	"testing"
	"time"

	"feedhub/feed"
	"feedhub/model"
	"feedhub/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestFeed(t *testing.T, s *store.Store, url string) *model.Feed {
	t.Helper()
	f := &model.Feed{URL: url, Title: "Test Feed", IsActive: true}
	require.NoError(t, s.SaveFeed(f))
	return f
}

func TestReconciler_CreatesNewArticle(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	pub := time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC)
	entry := &feed.ParsedEntry{
		Title:     "Hello",
		Link:      "https://example.com/hello",
		GUID:      "guid-hello",
		Author:    "Alice",
		Summary:   "A summary",
		Content:   "A body",
		Published: &pub,
	}

	changed, article, err := rec.Reconcile(f, entry)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, article)
	assert.NotZero(t, article.ID)
	assert.Equal(t, "https://example.com/hello", article.URL,
		"Stored URL must be the entry link, not the guid used for lookup")
	assert.Equal(t, "Hello", article.Title)
	assert.Equal(t, "Alice", article.Author)
	require.NotNil(t, article.PubDate)
}

func TestReconciler_Idempotent(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	entry := &feed.ParsedEntry{
		Title:   "Hello",
		Link:    "https://example.com/hello",
		GUID:    "https://example.com/hello",
		Summary: "A summary",
		Content: "A body",
	}

	changed, first, err := rec.Reconcile(f, entry)
	require.NoError(t, err)
	require.True(t, changed)

	changed, second, err := rec.Reconcile(f, entry)
	require.NoError(t, err)
	assert.False(t, changed, "Unchanged entry should be a no-op the second time")
	assert.Equal(t, first.ID, second.ID, "Primary key must be unchanged")

	count, err := s.CountArticles(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "No second article may be created")
}

func TestReconciler_DedupByIdentity(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	// First sighting: guid equals the link, article created under it.
	createLink := "https://example.com/posts/1"
	changed, created, err := rec.Reconcile(f, &feed.ParsedEntry{
		Title:   "Post",
		Link:    createLink,
		GUID:    createLink,
		Summary: "s",
		Content: "c",
	})
	require.NoError(t, err)
	require.True(t, changed)

	// Second sighting: same guid, the publisher moved the link.
	changed, again, err := rec.Reconcile(f, &feed.ParsedEntry{
		Title:   "Post",
		Link:    "https://example.com/posts/1?utm_source=feed",
		GUID:    createLink,
		Summary: "s",
		Content: "c",
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, created.ID, again.ID)

	count, err := s.CountArticles(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Only one article may exist for one identity")
	assert.Equal(t, createLink, again.URL, "URL reflects the link from the creating call")
}

func TestReconciler_FallbackIdentityOnLink(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	link := "https://example.com/posts/2"

	// Feed initially publishes entries without guids.
	changed, created, err := rec.Reconcile(f, &feed.ParsedEntry{
		Title:   "Post Two",
		Link:    link,
		GUID:    link, // parser falls back to the link
		Summary: "s",
		Content: "c",
	})
	require.NoError(t, err)
	require.True(t, changed)

	// Later the publisher starts declaring a guid for the same post.
	changed, matched, err := rec.Reconcile(f, &feed.ParsedEntry{
		Title:   "Post Two",
		Link:    link,
		GUID:    "tag:example.com,2023:posts/2",
		Summary: "s",
		Content: "c",
	})
	require.NoError(t, err)
	assert.False(t, changed, "Link-based fallback lookup must still match")
	assert.Equal(t, created.ID, matched.ID)

	count, err := s.CountArticles(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Introducing a guid later must not duplicate the article")
}

func TestReconciler_ContentChangeUpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	entry := &feed.ParsedEntry{
		Title:   "Hello",
		Link:    "https://example.com/hello",
		GUID:    "https://example.com/hello",
		Summary: "old summary",
		Content: "old body",
	}

	_, created, err := rec.Reconcile(f, entry)
	require.NoError(t, err)

	// Externally owned state on the row.
	require.NoError(t, s.MarkArticleRead(created.ID, true))

	updatedEntry := *entry
	updatedEntry.Summary = "new summary"
	updatedEntry.Content = "new body"
	pub := time.Now()
	updatedEntry.Published = &pub

	changed, updated, err := rec.Reconcile(f, &updatedEntry)
	require.NoError(t, err)
	assert.True(t, changed, "Changed summary must be detected")
	assert.Equal(t, created.ID, updated.ID, "Update must preserve the row")

	got, err := s.GetArticle(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new summary", got.Summary)
	assert.Equal(t, "new body", got.Content)
	assert.True(t, got.IsRead, "Read state must be untouched by a content update")

	count, err := s.CountArticles(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReconciler_TitleOnlyChange(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	entry := &feed.ParsedEntry{
		Title:   "Original",
		Link:    "https://example.com/hello",
		GUID:    "https://example.com/hello",
		Summary: "s",
		Content: "c",
	}
	_, _, err := rec.Reconcile(f, entry)
	require.NoError(t, err)

	retitled := *entry
	retitled.Title = "Corrected"
	changed, article, err := rec.Reconcile(f, &retitled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Corrected", article.Title)
}

func TestReconciler_EmptyTitleGetsPlaceholder(t *testing.T) {
	s := newTestStore(t)
	f := newTestFeed(t, s, "https://example.com/rss")
	rec := NewReconciler(s)

	changed, article, err := rec.Reconcile(f, &feed.ParsedEntry{
		Link: "https://example.com/untitled",
		GUID: "https://example.com/untitled",
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, feed.DefaultEntryTitle, article.Title)
}
