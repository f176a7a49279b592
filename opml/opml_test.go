package opml

import (
	"bytes"
	"strings"
	"testing"

	"feedhub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FlatOutlines(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline type="rss" text="Example" title="Example" xmlUrl="https://example.com/rss" description="An example feed"/>
    <outline type="rss" text="Other" xmlUrl="https://other.com/rss" category="news"/>
  </body>
</opml>`

	feeds, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	assert.Equal(t, "https://example.com/rss", feeds[0].URL)
	assert.Equal(t, "Example", feeds[0].Title)
	assert.Equal(t, "An example feed", feeds[0].Description)
	assert.True(t, feeds[0].IsActive, "Imported feeds default to active")

	assert.Equal(t, "Other", feeds[1].Title, "Title should fall back to the text attribute")
	assert.Equal(t, "news", feeds[1].Category)
}

func TestParse_NestedCategories(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <head/>
  <body>
    <outline text="tech">
      <outline type="rss" text="Gopher Blog" xmlUrl="https://gopher.example/rss"/>
      <outline type="rss" text="Explicit" xmlUrl="https://explicit.example/rss" category="custom"/>
    </outline>
  </body>
</opml>`

	feeds, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	assert.Equal(t, "tech", feeds[0].Category, "Nested feeds inherit the parent outline category")
	assert.Equal(t, "custom", feeds[1].Category, "Explicit category wins over the inherited one")
}

func TestParse_InvalidDocument(t *testing.T) {
	_, err := Parse(strings.NewReader("not xml at all"))
	assert.Error(t, err)
}

func TestGenerate_RoundTrip(t *testing.T) {
	feeds := []*model.Feed{
		{URL: "https://a.example/rss", Title: "Feed A", Category: "tech", Description: "About A"},
		{URL: "https://b.example/rss", Title: "Feed B", Category: "tech"},
		{URL: "https://c.example/rss", Title: "Feed C"},
	}

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, feeds))

	out := buf.String()
	assert.Contains(t, out, `<?xml`)
	assert.Contains(t, out, "feedhub Subscriptions")

	parsed, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, parsed, 3)

	byURL := make(map[string]*model.Feed, len(parsed))
	for _, f := range parsed {
		byURL[f.URL] = f
	}

	require.Contains(t, byURL, "https://a.example/rss")
	assert.Equal(t, "Feed A", byURL["https://a.example/rss"].Title)
	assert.Equal(t, "tech", byURL["https://a.example/rss"].Category)
	assert.Equal(t, "About A", byURL["https://a.example/rss"].Description)
	assert.Equal(t, "", byURL["https://c.example/rss"].Category)
}
