// Package opml provides OPML import and export of feed subscriptions.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"feedhub/model"
)

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements (feeds).
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a feed or category in OPML.
type Outline struct {
	Text        string    `xml:"text,attr,omitempty"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLUrl      string    `xml:"xmlUrl,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Category    string    `xml:"category,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML document and extracts feed subscriptions.
// Imported feeds are active by default.
func Parse(r io.Reader) ([]*model.Feed, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return extractFeeds(doc.Body.Outlines, ""), nil
}

// extractFeeds recursively extracts feeds from outlines.
// parentCategory is used for nested outlines that don't specify their own category.
func extractFeeds(outlines []Outline, parentCategory string) []*model.Feed {
	var feeds []*model.Feed

	for _, outline := range outlines {
		// An outline with an xmlUrl is a feed
		if outline.XMLUrl != "" {
			feed := &model.Feed{
				URL:         outline.XMLUrl,
				Title:       outline.Title,
				Description: outline.Description,
				IsActive:    true,
			}

			if outline.Category != "" {
				feed.Category = outline.Category
			} else if parentCategory != "" {
				feed.Category = parentCategory
			}

			// Fallback to text if title is empty
			if feed.Title == "" {
				feed.Title = outline.Text
			}

			feeds = append(feeds, feed)
		}

		if len(outline.Outlines) > 0 {
			// Nested outlines inherit this outline's text as category
			categoryForChildren := outline.Text
			if categoryForChildren == "" {
				categoryForChildren = parentCategory
			}

			feeds = append(feeds, extractFeeds(outline.Outlines, categoryForChildren)...)
		}
	}

	return feeds
}

// Generate writes the feeds as an OPML 2.0 document, grouping by
// category.
func Generate(w io.Writer, feeds []*model.Feed) error {
	categories := make(map[string][]*model.Feed)
	var uncategorized []*model.Feed

	for _, feed := range feeds {
		if feed.Category == "" {
			uncategorized = append(uncategorized, feed)
		} else {
			categories[feed.Category] = append(categories[feed.Category], feed)
		}
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "feedhub Subscriptions",
			DateCreated: time.Now().Format(time.RFC1123),
		},
	}

	for category, categoryFeeds := range categories {
		categoryOutline := Outline{
			Text:  category,
			Title: category,
		}
		for _, feed := range categoryFeeds {
			categoryOutline.Outlines = append(categoryOutline.Outlines, feedOutline(feed))
		}
		doc.Body.Outlines = append(doc.Body.Outlines, categoryOutline)
	}

	for _, feed := range uncategorized {
		doc.Body.Outlines = append(doc.Body.Outlines, feedOutline(feed))
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}

func feedOutline(feed *model.Feed) Outline {
	return Outline{
		Type:        "rss",
		Text:        feed.Title,
		Title:       feed.Title,
		XMLUrl:      feed.URL,
		Description: feed.Description,
		Category:    feed.Category,
	}
}
