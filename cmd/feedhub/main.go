package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"feedhub/config"
	"feedhub/feed"
	"feedhub/fetch"
	"feedhub/ingest"
	"feedhub/model"
	"feedhub/opml"
	"feedhub/store"
	"feedhub/translate"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

// addFetchTimeout is the shorter timeout used when verifying a feed
// interactively; scheduled runs use the configured timeout instead.
const addFetchTimeout = 10 * time.Second

var cfg config.Config

func main() {
	cfg = config.Load()

	app := &cli.App{
		Name:    "feedhub",
		Usage:   "An RSS/Atom feed aggregator",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   getDefaultDBPath(),
				Usage:   "Database file path",
				EnvVars: []string{"FEEDHUB_DB"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a new feed",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "category",
						Aliases: []string{"c"},
						Usage:   "Feed category",
					},
					&cli.IntFlag{
						Name:  "interval",
						Value: 60,
						Usage: "Fetch interval in minutes",
					},
				},
				Action: addFeed,
			},
			{
				Name:   "feeds",
				Usage:  "List all feeds",
				Action: listFeeds,
			},
			{
				Name:      "fetch",
				Usage:     "Fetch a single feed and reconcile its articles",
				ArgsUsage: "<feed-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "timeout",
						Aliases: []string{"t"},
						Value:   30,
						Usage:   "Fetch timeout in seconds",
					},
				},
				Action: fetchFeed,
			},
			{
				Name:   "fetch-all",
				Usage:  "Fetch all active feeds (scheduled run)",
				Action: fetchAllFeeds,
			},
			{
				Name:  "list",
				Usage: "List articles",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:    "feed-id",
						Aliases: []string{"f"},
						Usage:   "Filter by feed ID",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of articles to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Value:   0,
						Usage:   "Offset for pagination",
					},
					&cli.BoolFlag{
						Name:    "unread",
						Aliases: []string{"u"},
						Usage:   "Show only unread articles",
					},
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Show articles since duration (e.g., 7d, 2w, 3m, 1y)",
					},
				},
				Action: listArticles,
			},
			{
				Name:      "show",
				Usage:     "Show article details",
				ArgsUsage: "<article-id>",
				Action:    showArticle,
			},
			{
				Name:      "mark-read",
				Usage:     "Mark articles as read",
				ArgsUsage: "<article-id>...",
				Action:    markRead,
			},
			{
				Name:      "enable",
				Usage:     "Enable scheduled fetching for a feed",
				ArgsUsage: "<feed-id>",
				Action:    enableFeed,
			},
			{
				Name:      "disable",
				Usage:     "Disable scheduled fetching for a feed",
				ArgsUsage: "<feed-id>",
				Action:    disableFeed,
			},
			{
				Name:      "remove",
				Usage:     "Remove a feed and its articles",
				ArgsUsage: "<feed-id>",
				Action:    removeFeed,
			},
			{
				Name:  "prune",
				Usage: "Delete articles older than a number of days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Value: 30,
						Usage: "Delete articles created more than this many days ago",
					},
				},
				Action: pruneArticles,
			},
			{
				Name:      "translate",
				Usage:     "Translate an article title using the configured provider",
				ArgsUsage: "<article-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "to",
						Value: "en",
						Usage: "Target language code",
					},
				},
				Action: translateArticle,
			},
			{
				Name:      "import",
				Usage:     "Import feeds from OPML file",
				ArgsUsage: "<opml-file>",
				Action:    importOPML,
			},
			{
				Name:  "export",
				Usage: "Export feeds to OPML file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportOPML,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func getDefaultDBPath() string {
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "feedhub.db"
	}
	return filepath.Join(home, ".config", "feedhub", "feedhub.db")
}

func getStore(c *cli.Context) (*store.Store, error) {
	dbPath := c.String("db")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return s, nil
}

func newClient(timeout time.Duration) *fetch.Client {
	return fetch.NewClient(timeout, fetch.NewProxy(cfg.ProxyBase))
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func parseID(arg string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid ID: %s", arg)
	}
	return id, nil
}

func addFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub add <url>", ExitUsageError)
	}

	newFeed := &model.Feed{
		URL:                  c.Args().Get(0),
		Category:             c.String("category"),
		FetchIntervalMinutes: c.Int("interval"),
		IsActive:             true,
	}

	if err := newFeed.Validate(); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	// Verify the URL with the short interactive timeout and adopt the
	// feed's own title before saving.
	client := newClient(addFetchTimeout)
	result, err := client.Fetch(c.Context, newFeed.URL)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to fetch feed: %v", err), ExitDataError)
	}

	parsed := feed.NewParser().Parse(result.Body, result.Encoding)
	if parsed == nil {
		return cli.Exit("Failed to parse feed", ExitDataError)
	}

	newFeed.Title = parsed.Title
	newFeed.Description = parsed.Description

	if err := s.SaveFeed(newFeed); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save feed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"feed":    newFeed,
	})
}

func listFeeds(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	feeds, err := s.GetAllFeeds()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get feeds: %v", err), ExitDataError)
	}

	return outputJSON(feeds)
}

func fetchFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub fetch <feed-id>", ExitUsageError)
	}

	feedID, err := parseID(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid feed ID", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	timeout := time.Duration(c.Int("timeout")) * time.Second
	orch := ingest.NewOrchestrator(s, newClient(timeout), cfg.Workers)

	fmt.Printf("Fetching feed %d...\n", feedID)

	outcome, err := orch.ProcessFeed(c.Context, feedID, false)
	if err != nil {
		if errors.Is(err, store.ErrFeedNotFound) {
			return cli.Exit(fmt.Sprintf("Feed %d does not exist", feedID), ExitDataError)
		}
		return cli.Exit(fmt.Sprintf("Failed to process feed: %v", err), ExitDataError)
	}

	fmt.Printf("Feed: %s\n", outcome.FeedTitle)
	fmt.Printf("Status: %s\n", outcome.Status)
	if outcome.Status != model.StatusSuccess {
		return cli.Exit("Fetch did not succeed", ExitDataError)
	}

	fmt.Printf("New/updated articles: %d\n", outcome.NewOrUpdated)
	fmt.Printf("Total articles: %d\n", outcome.Total)
	return nil
}

func fetchAllFeeds(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	orch := ingest.NewOrchestrator(s, newClient(cfg.FetchTimeout), cfg.Workers)

	outcomes, err := orch.ProcessAllActiveFeeds(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to process feeds: %v", err), ExitDataError)
	}

	totalNew := 0
	failed := 0
	for _, o := range outcomes {
		totalNew += o.NewOrUpdated
		if o.Status != model.StatusSuccess {
			failed++
		}
	}

	return outputJSON(map[string]interface{}{
		"feeds":          len(outcomes),
		"failed":         failed,
		"new_or_updated": totalNew,
		"outcomes":       outcomes,
	})
}

func listArticles(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	opts, err := store.BuildQueryOptions(
		c.Int64("feed-id"),
		c.Int("limit"),
		c.Int("offset"),
		c.Bool("unread"),
		c.String("since"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	articles, err := s.GetArticles(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get articles: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count":    len(articles),
		"limit":    opts.Limit,
		"offset":   opts.Offset,
		"articles": articles,
	})
}

func showArticle(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub show <article-id>", ExitUsageError)
	}

	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid article ID", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	article, err := s.GetArticle(id)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get article: %v", err), ExitDataError)
	}

	return outputJSON(article)
}

func markRead(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub mark-read <article-id>...", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	marked := 0
	for i := 0; i < c.NArg(); i++ {
		id, err := parseID(c.Args().Get(i))
		if err != nil {
			continue
		}

		if err := s.MarkArticleRead(id, true); err != nil {
			continue
		}
		marked++
	}

	return outputJSON(map[string]interface{}{
		"marked_read": marked,
	})
}

func setFeedActive(c *cli.Context, active bool) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub enable|disable <feed-id>", ExitUsageError)
	}

	feedID, err := parseID(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid feed ID", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	f, err := s.GetFeed(feedID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get feed: %v", err), ExitDataError)
	}

	f.IsActive = active
	if err := s.SaveFeed(f); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save feed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":   true,
		"feed_id":   feedID,
		"is_active": active,
	})
}

func enableFeed(c *cli.Context) error {
	return setFeedActive(c, true)
}

func disableFeed(c *cli.Context) error {
	return setFeedActive(c, false)
}

func removeFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub remove <feed-id>", ExitUsageError)
	}

	feedID, err := parseID(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid feed ID", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	if err := s.DeleteFeed(feedID); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to delete feed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"feed_id": feedID,
	})
}

func pruneArticles(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	orch := ingest.NewOrchestrator(s, newClient(cfg.FetchTimeout), cfg.Workers)
	deleted, err := orch.PruneArticlesOlderThan(c.Int("days"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to prune articles: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"deleted": deleted,
		"days":    c.Int("days"),
	})
}

func translateArticle(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub translate <article-id>", ExitUsageError)
	}

	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid article ID", ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	article, err := s.GetArticle(id)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get article: %v", err), ExitDataError)
	}

	translator, err := translate.New(cfg.TranslateProvider, cfg.TranslateAPIKey)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	translated, err := translator.Translate(c.Context, article.Title, "auto", c.String("to"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Translation failed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"article_id": id,
		"original":   article.Title,
		"translated": translated,
	})
}

func importOPML(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: feedhub import <opml-file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	feeds, err := opml.Parse(file)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	imported := 0
	skipped := 0
	var importErrors []string

	for _, newFeed := range feeds {
		if err := s.SaveFeed(newFeed); err != nil {
			// Feed might already exist (duplicate URL)
			skipped++
			importErrors = append(importErrors, fmt.Sprintf("%s: %v", newFeed.URL, err))
			continue
		}
		imported++
	}

	return outputJSON(map[string]interface{}{
		"success":  true,
		"imported": imported,
		"skipped":  skipped,
		"total":    len(feeds),
		"errors":   importErrors,
	})
}

func exportOPML(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	feeds, err := s.GetAllFeeds()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get feeds: %v", err), ExitDataError)
	}

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	if err := opml.Generate(writer, feeds); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	if outputPath != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    outputPath,
			"count":   len(feeds),
		})
	}

	return nil
}
