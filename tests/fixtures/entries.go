// Package fixtures provides reusable API documents for tests.
// It keeps sample entry, profile and tag payloads in one place so the model,
// client and fake-server tests decode the same shapes.
package fixtures

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// FullEntryJSON is an entry document with every field the model reads.
const FullEntryJSON = `{
  "id": "gRtwnDeqCDpZ42bXE9Sp7dNhm4R6NsipqFVbXn2XpDA=_13fb9d6f274:2ac9c5:f5718180",
  "title": "Why Go modules matter",
  "author": "Jane Doe",
  "content": {"direction": "ltr", "content": "<p>Body</p><img src=\"https://img.example.com/content.png\">"},
  "summary": {"direction": "ltr", "content": "<p>Summary</p>"},
  "crawled": 1457000000000,
  "recrawled": 1457000100000,
  "published": 1456999000000,
  "updated": 1457000200000,
  "alternate": [{"href": "https://blog.example.com/go-modules", "type": "text/html"}],
  "enclosure": [
    {"href": "https://cdn.example.com/episode.mp3", "type": "audio/mpeg", "length": 1234},
    {"href": "https://cdn.example.com/cover.jpg", "type": "image/jpeg"}
  ],
  "origin": {"streamId": "feed/https://blog.example.com/rss", "title": "Example Blog", "htmlUrl": "https://blog.example.com"},
  "keywords": ["go", "modules"],
  "visual": {"url": "https://img.example.com/visual.png", "width": 640, "height": 480, "contentType": "image/png"},
  "unread": false,
  "tags": [{"id": "user/c805fcbf-3acf-4302-a97e-d82f9d7c897f/tag/golang", "label": "golang"}],
  "categories": [{"id": "user/c805fcbf-3acf-4302-a97e-d82f9d7c897f/category/tech", "label": "tech"}],
  "engagement": 42,
  "actionTimestamp": 1457000300000,
  "fingerprint": "6e2b8c1a",
  "originId": "https://blog.example.com/?p=1",
  "sid": "1457"
}`

// ProfileID is the user id used by the profile fixture.
const ProfileID = "c805fcbf-3acf-4302-a97e-d82f9d7c897f"

// ProfileJSON is a profile document for ProfileID.
const ProfileJSON = `{
  "id": "c805fcbf-3acf-4302-a97e-d82f9d7c897f",
  "email": "jane@example.com",
  "givenName": "Jane",
  "familyName": "Doe",
  "fullName": "Jane Doe",
  "locale": "en",
  "client": "feedlykit",
  "wave": "2016.10",
  "created": 1400000000000
}`

// LinkOptions describes one alternate or enclosure link.
type LinkOptions struct {
	Href string
	Type string
}

// EntryOptions configures a generated entry document.
// Zero-valued fields are left out of the document.
type EntryOptions struct {
	ID         string
	Title      string
	HTML       string
	VisualURL  string
	Enclosures []LinkOptions
	TagIDs     []string
	Published  int64
}

// EntryJSON builds an entry document from the options.
//
// Example:
//
//	doc := EntryJSON(EntryOptions{
//	    ID:        "entry-1",
//	    VisualURL: "https://img.example.com/a.png",
//	})
func EntryJSON(opts EntryOptions) string {
	doc := "{}"
	set := func(path string, value any) {
		var err error
		doc, err = sjson.Set(doc, path, value)
		if err != nil {
			panic(fmt.Sprintf("fixtures: set %s: %v", path, err))
		}
	}

	if opts.ID != "" {
		set("id", opts.ID)
	}
	if opts.Title != "" {
		set("title", opts.Title)
	}
	if opts.HTML != "" {
		set("content.direction", "ltr")
		set("content.content", opts.HTML)
	}
	if opts.VisualURL != "" {
		set("visual.url", opts.VisualURL)
	}
	if opts.Enclosures != nil {
		links := make([]map[string]string, 0, len(opts.Enclosures))
		for _, link := range opts.Enclosures {
			links = append(links, map[string]string{"href": link.Href, "type": link.Type})
		}
		set("enclosure", links)
	}
	if opts.TagIDs != nil {
		tags := make([]map[string]string, 0, len(opts.TagIDs))
		for _, id := range opts.TagIDs {
			tags = append(tags, map[string]string{"id": id})
		}
		set("tags", tags)
	}
	if opts.Published != 0 {
		set("published", opts.Published)
	}
	return doc
}
