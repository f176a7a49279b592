package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"feedhub/feed"
	"feedhub/fetch"
	"feedhub/model"
	"feedhub/store"
)

// DefaultWorkers bounds the number of feeds fetched in parallel so a
// large subscription list doesn't saturate outbound capacity.
const DefaultWorkers = 10

// Outcome reports the result of processing one feed.
type Outcome struct {
	FeedID       int64  `json:"feed_id"`
	FeedTitle    string `json:"feed_title"`
	Status       string `json:"status"`
	NewOrUpdated int    `json:"new_or_updated"`
	Total        int    `json:"total_articles"`
	Err          error  `json:"-"`
}

// Orchestrator drives the fetch → parse → reconcile pipeline. Feeds
// are processed independently; one feed's failure is recorded on that
// feed only and never aborts the rest of a batch.
type Orchestrator struct {
	store   *store.Store
	client  *fetch.Client
	parser  *feed.Parser
	workers int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewOrchestrator creates an Orchestrator. workers <= 0 selects
// DefaultWorkers.
func NewOrchestrator(s *store.Store, client *fetch.Client, workers int) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		store:   s,
		client:  client,
		parser:  feed.NewParser(),
		workers: workers,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// feedLock returns the mutex guarding a single feed, so at most one
// fetch of any given feed is ever in flight.
func (o *Orchestrator) feedLock(feedID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[feedID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[feedID] = lock
	}
	return lock
}

// ProcessFeed fetches, parses and reconciles a single feed. Transport
// and parse failures are recovered locally: the feed's status is set
// to a failure marker and a failed Outcome is returned with a nil
// error. The error return is reserved for a missing feed or a storage
// failure.
func (o *Orchestrator) ProcessFeed(ctx context.Context, feedID int64, scheduled bool) (*Outcome, error) {
	lock := o.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()

	f, err := o.store.GetFeed(feedID)
	if err != nil {
		return nil, err
	}

	log.Printf("ingest: fetching feed %d: %s", f.ID, f.URL)

	result, err := o.client.Fetch(ctx, f.URL)
	now := time.Now()
	if err != nil {
		log.Printf("ingest: fetch failed for %s: %v", f.URL, err)
		return o.recordFailure(f, model.StatusFetchFailed, now)
	}

	parsed := o.parser.Parse(result.Body, result.Encoding)
	if parsed == nil {
		log.Printf("ingest: parse failed for %s", f.URL)
		return o.recordFailure(f, model.StatusParseFailed, now)
	}

	outcome := &Outcome{FeedID: f.ID, Status: model.StatusSuccess}

	// One transaction per feed: metadata merge, status stamp and all
	// article writes commit together, so a crash mid-fetch never
	// leaves the feed half-updated.
	err = o.store.Transact(func(tx *store.Store) error {
		// Never overwrite an admin-curated title or description.
		if f.Title == "" {
			f.Title = parsed.Title
		}
		if f.Description == "" && parsed.Description != "" {
			f.Description = parsed.Description
		}
		f.LastFetchStatus = model.StatusSuccess
		f.LastFetchAt = &now
		if scheduled {
			f.LastAutoFetchAt = &now
		}
		if err := tx.SaveFeed(f); err != nil {
			return err
		}

		rec := NewReconciler(tx)
		for i := range parsed.Entries {
			changed, _, err := rec.Reconcile(f, &parsed.Entries[i])
			if err != nil {
				// One bad entry must not abort the rest of the feed.
				log.Printf("ingest: entry %q in feed %d: %v", parsed.Entries[i].GUID, f.ID, err)
				continue
			}
			if changed {
				outcome.NewOrUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome.FeedTitle = f.Title
	outcome.Total, err = o.store.CountArticles(f.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("ingest: feed %q done: %d new/updated, %d total", f.Title, outcome.NewOrUpdated, outcome.Total)
	return outcome, nil
}

// recordFailure stamps a failure marker on the feed and returns the
// matching Outcome. Articles are not touched.
func (o *Orchestrator) recordFailure(f *model.Feed, status string, now time.Time) (*Outcome, error) {
	f.LastFetchStatus = status
	f.LastFetchAt = &now
	if err := o.store.SaveFeed(f); err != nil {
		return nil, err
	}
	return &Outcome{FeedID: f.ID, FeedTitle: f.Title, Status: status}, nil
}

// ProcessAllActiveFeeds runs the pipeline over every active feed using
// a bounded worker pool. Cancelling ctx stops launching new feed jobs;
// in-flight fetches finish or time out naturally. Every feed yields an
// Outcome, failures included.
func (o *Orchestrator) ProcessAllActiveFeeds(ctx context.Context) ([]Outcome, error) {
	feeds, err := o.store.ListActiveFeeds()
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, nil
	}

	log.Printf("ingest: processing %d active feeds with %d workers", len(feeds), o.workers)

	jobs := make(chan *model.Feed)
	results := make(chan Outcome, len(feeds))

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				outcome, err := o.ProcessFeed(ctx, f.ID, true)
				if err != nil {
					// Isolate the failure to this feed.
					log.Printf("ingest: feed %d failed: %v", f.ID, err)
					results <- Outcome{FeedID: f.ID, FeedTitle: f.Title, Status: model.StatusFetchFailed, Err: err}
					continue
				}
				results <- *outcome
			}
		}()
	}

	for _, f := range feeds {
		// Stop launching new feed jobs once the batch is cancelled;
		// in-flight fetches finish or time out on their own.
		if ctx.Err() != nil {
			log.Printf("ingest: batch cancelled: %v", ctx.Err())
			break
		}
		select {
		case <-ctx.Done():
		case jobs <- f:
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(feeds))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// PruneArticlesOlderThan deletes articles created more than the given
// number of days ago and returns the count deleted.
func (o *Orchestrator) PruneArticlesOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := o.store.DeleteArticlesOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("ingest: pruned %d articles older than %d days", deleted, days)
	return deleted, nil
}
