// Package feed provides tolerant RSS/Atom/RDF parsing for feedhub.
package feed

import (
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/encoding/htmlindex"
)

// Placeholder values used when a feed or entry omits its title.
const (
	DefaultFeedTitle  = "Unknown Feed"
	DefaultEntryTitle = "Untitled"
)

// ParsedFeed is the ephemeral result of parsing one feed document. It
// is produced fresh per fetch and discarded after reconciliation.
type ParsedFeed struct {
	Title       string
	Description string
	Link        string
	Entries     []ParsedEntry
}

// ParsedEntry is a single entry extracted from a feed document, before
// reconciliation against stored articles.
type ParsedEntry struct {
	Title     string
	Link      string
	Author    string
	Summary   string
	Content   string
	GUID      string
	Published *time.Time
}

// Parser decodes raw feed bytes into a ParsedFeed.
type Parser struct {
	inner *gofeed.Parser
}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{inner: gofeed.NewParser()}
}

// Parse decodes body using the declared encoding and parses it as
// RSS/Atom/RDF. Invalid byte sequences are dropped rather than failing
// the parse, and gofeed's non-strict XML decoding recovers what it can
// from malformed markup. A document from which no feed structure can
// be recovered yields nil; Parse never returns an error.
func (p *Parser) Parse(body []byte, encoding string) *ParsedFeed {
	content := decode(body, encoding)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	parsed, err := p.inner.ParseString(content)
	if err != nil || parsed == nil {
		log.Printf("feed: parse failed: %v", err)
		return nil
	}

	pf := &ParsedFeed{
		Title:       parsed.Title,
		Description: parsed.Description,
		Link:        parsed.Link,
	}
	if pf.Title == "" {
		pf.Title = DefaultFeedTitle
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry, ok := convertItem(item)
		if !ok {
			log.Printf("feed: skipping entry with no guid or link in %q", pf.Title)
			continue
		}
		pf.Entries = append(pf.Entries, entry)
	}

	return pf
}

// convertItem maps one gofeed item to a ParsedEntry. Entries carrying
// neither a guid nor a link have no usable identity and are rejected.
func convertItem(item *gofeed.Item) (ParsedEntry, bool) {
	entry := ParsedEntry{
		Title:   item.Title,
		Link:    item.Link,
		Summary: cleanHTML(item.Description),
		GUID:    item.GUID,
	}

	if entry.Title == "" {
		entry.Title = DefaultEntryTitle
	}

	// Entry identity: declared guid, falling back to the link.
	if entry.GUID == "" {
		entry.GUID = item.Link
	}
	if entry.GUID == "" {
		return ParsedEntry{}, false
	}

	if item.Author != nil {
		entry.Author = item.Author.Name
	}

	// Prefer the structured content field over the summary.
	if item.Content != "" {
		entry.Content = cleanHTML(item.Content)
	} else {
		entry.Content = entry.Summary
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		entry.Published = &t
	}

	return entry, true
}

// cleanHTML is a minimal cleaner; a full sanitizer can be plugged in
// here if entry bodies are ever rendered unescaped.
func cleanHTML(s string) string {
	return strings.TrimSpace(s)
}

// decode converts body to valid UTF-8 using the declared encoding,
// dropping byte sequences that cannot be decoded.
func decode(body []byte, encoding string) string {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding != "" && encoding != "utf-8" && encoding != "utf8" {
		if enc, err := htmlindex.Get(encoding); err == nil {
			if out, err := enc.NewDecoder().Bytes(body); err == nil {
				body = out
			}
		}
	}
	return strings.ToValidUTF8(string(body), "")
}
