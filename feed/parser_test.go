package feed

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParseRSS2(t *testing.T) {
	data, err := os.ReadFile("testdata/rss2.xml")
	require.NoError(t, err)

	parser := NewParser()
	parsed := parser.Parse(data, "utf-8")
	require.NotNil(t, parsed)

	assert.Equal(t, "Test RSS Feed", parsed.Title)
	assert.Equal(t, "A feed used by the parser tests", parsed.Description)
	assert.Equal(t, "https://example.com", parsed.Link)

	require.Len(t, parsed.Entries, 3, "Should parse 3 entries from RSS feed")

	first := parsed.Entries[0]
	assert.Equal(t, "First Test Entry", first.Title)
	assert.Equal(t, "https://example.com/entry-1", first.Link)
	assert.Equal(t, "entry-1", first.GUID)
	assert.Equal(t, "Summary of the first test entry.", first.Summary, "Summary should be trimmed")
	assert.Contains(t, first.Content, "Full body", "Content should prefer content:encoded over description")
	require.NotNil(t, first.Published)
	assert.Equal(t, 2023, first.Published.UTC().Year())

	second := parsed.Entries[1]
	assert.Equal(t, "entry-2", second.GUID)
	assert.Equal(t, second.Summary, second.Content, "Content should fall back to summary when no content field")

	// Third entry has no guid: identity falls back to the link.
	third := parsed.Entries[2]
	assert.Equal(t, "https://example.com/entry-3", third.GUID)
	assert.Nil(t, third.Published, "Missing pubDate should stay absent")
}

func TestParser_ParseAtom(t *testing.T) {
	data, err := os.ReadFile("testdata/atom.xml")
	require.NoError(t, err)

	parser := NewParser()
	parsed := parser.Parse(data, "utf-8")
	require.NotNil(t, parsed)

	assert.Equal(t, "Test Atom Feed", parsed.Title)
	require.Len(t, parsed.Entries, 2, "Should parse 2 entries from Atom feed")

	first := parsed.Entries[0]
	assert.Equal(t, "First Atom Entry", first.Title)
	assert.Equal(t, "https://example.com/atom-entry-1", first.Link)
	assert.Equal(t, "atom-entry-1", first.GUID)
	assert.Equal(t, "Bob", first.Author)
	assert.Contains(t, first.Content, "HTML content")
	require.NotNil(t, first.Published)
	assert.Equal(t, time.January, first.Published.UTC().Month())
}

func TestParser_MalformedButRecoverable(t *testing.T) {
	// Missing end tag and an unknown entity; non-strict XML decoding
	// should still recover the one entry.
	malformed := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Broken &nbsp; Feed</title>
    <item>
      <title>Recoverable Entry</title>
      <link>https://example.com/recoverable</link>
      <guid>recoverable-1</guid>
      <description>Still readable.
  </channel>
</rss>`

	parser := NewParser()
	parsed := parser.Parse([]byte(malformed), "utf-8")
	require.NotNil(t, parsed, "Malformed feed with recoverable structure should not fail")
	require.NotEmpty(t, parsed.Entries)
	assert.Equal(t, "Recoverable Entry", parsed.Entries[0].Title)
	assert.Equal(t, "recoverable-1", parsed.Entries[0].GUID)
}

func TestParser_GarbageInput(t *testing.T) {
	parser := NewParser()

	assert.Nil(t, parser.Parse(nil, "utf-8"))
	assert.Nil(t, parser.Parse([]byte("   "), "utf-8"))
	assert.Nil(t, parser.Parse([]byte("this is not a feed at all"), "utf-8"))
	assert.Nil(t, parser.Parse([]byte{0xff, 0xfe, 0x00, 0x01}, "utf-8"))
}

func TestParser_TitleDefaults(t *testing.T) {
	noTitles := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <item>
      <link>https://example.com/untitled</link>
      <guid>untitled-1</guid>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	parsed := parser.Parse([]byte(noTitles), "utf-8")
	require.NotNil(t, parsed)

	assert.Equal(t, DefaultFeedTitle, parsed.Title)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, DefaultEntryTitle, parsed.Entries[0].Title)
	assert.Empty(t, parsed.Entries[0].Content, "Empty content is OK")
}

func TestParser_SkipsEntryWithoutIdentity(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Partial Feed</title>
    <item>
      <title>No identity at all</title>
    </item>
    <item>
      <title>Good Entry</title>
      <link>https://example.com/good</link>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	parsed := parser.Parse([]byte(feed), "utf-8")
	require.NotNil(t, parsed)

	require.Len(t, parsed.Entries, 1, "Entry without guid or link should be skipped")
	assert.Equal(t, "Good Entry", parsed.Entries[0].Title)
}

func TestParser_DeclaredEncoding(t *testing.T) {
	// "café" in ISO-8859-1: é is a single 0xE9 byte.
	latin1 := []byte("<rss version=\"2.0\"><channel><title>caf\xe9</title>" +
		"<item><title>Entry</title><link>https://example.com/1</link></item>" +
		"</channel></rss>")

	parser := NewParser()
	parsed := parser.Parse(latin1, "iso-8859-1")
	require.NotNil(t, parsed)
	assert.Equal(t, "café", parsed.Title)
}

func TestParser_InvalidBytesDropped(t *testing.T) {
	// A stray invalid UTF-8 byte inside otherwise valid XML must not
	// fail the whole parse.
	dirty := []byte("<rss version=\"2.0\"><channel><title>Ok\xfeFeed</title>" +
		"<item><title>Entry</title><link>https://example.com/1</link></item>" +
		"</channel></rss>")

	parser := NewParser()
	parsed := parser.Parse(dirty, "utf-8")
	require.NotNil(t, parsed)
	assert.Equal(t, "OkFeed", parsed.Title)
	require.Len(t, parsed.Entries, 1)
}
