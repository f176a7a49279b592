// Package ingest implements the feed ingestion pipeline: reconciling
// parsed entries against stored articles and orchestrating fetch runs
// across feeds.
package ingest

import (
	"feedhub/feed"
	"feedhub/model"
	"feedhub/store"
)

// Reconciler decides whether an incoming entry is new, an update to an
// existing article, or unchanged.
type Reconciler struct {
	store *store.Store
}

// NewReconciler creates a Reconciler over the given store, which may
// be transaction-scoped.
func NewReconciler(s *store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Reconcile applies one parsed entry to the feed's stored articles.
// It returns true when the entry created a new article or changed an
// existing one, along with the resulting article.
//
// Identity resolution is ordered: the entry guid first, then — when
// guid and link differ — the link. New articles store the entry's
// actual link as their URL so the user-facing link stays correct even
// though later lookups match on the guid. Updates happen in place on
// the existing row, preserving its primary key and any externally
// owned references (read state, favorites).
func (r *Reconciler) Reconcile(f *model.Feed, entry *feed.ParsedEntry) (bool, *model.Article, error) {
	guid := entry.GUID
	if guid == "" {
		guid = entry.Link
	}

	title := entry.Title
	if title == "" {
		title = feed.DefaultEntryTitle
	}

	article, err := r.store.FindArticle(f.ID, guid)
	if err != nil {
		return false, nil, err
	}
	if article == nil && guid != entry.Link {
		article, err = r.store.FindArticle(f.ID, entry.Link)
		if err != nil {
			return false, nil, err
		}
	}

	if article != nil {
		if article.Title == title && article.Summary == entry.Summary && article.Content == entry.Content {
			return false, article, nil
		}

		article.Title = title
		article.Author = entry.Author
		article.Summary = entry.Summary
		article.Content = entry.Content
		article.PubDate = entry.Published
		if err := r.store.UpdateArticle(article); err != nil {
			return false, nil, err
		}
		return true, article, nil
	}

	article = &model.Article{
		FeedID:  f.ID,
		Title:   title,
		URL:     entry.Link,
		Author:  entry.Author,
		Summary: entry.Summary,
		Content: entry.Content,
		PubDate: entry.Published,
	}
	if err := r.store.CreateArticle(article); err != nil {
		return false, nil, err
	}
	return true, article, nil
}
