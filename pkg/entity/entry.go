// Package entity defines the model layer of the Feedly Cloud API.
// It contains entries and the value objects an entry is composed of (contents, origins,
// links, visuals, tags, categories), the profile used to derive user stream ids, and the
// lenient decoding and write-parameter encoding rules for each of them.
package entity

// Entry is a single content item (article, post) fetched from the API.
//
// Optional scalar fields are pointers; optional list fields use a nil slice for
// "key absent" and a non-nil empty slice for "key present with []", so the decoder
// preserves the difference between absent, empty and populated lists.
//
// Two entries are the same entry when their ids are equal, regardless of other fields.
type Entry struct {
	ID string

	Title   *string
	Author  *string
	Content *Content
	Summary *Content

	// Timestamps are epoch milliseconds.
	Crawled         int64
	Recrawled       int64
	Published       int64
	Updated         *int64
	ActionTimestamp *int64

	Alternate []Link
	Enclosure []Link
	Origin    *Origin
	Keywords  []string
	Visual    *Visual

	Unread     bool
	Tags       []Tag
	Categories []Category
	Engagement *int

	Fingerprint *string
	OriginID    *string
	SID         *string
}

// NewEntry returns an entry that only carries an id, for referencing an entry
// in write requests. Other fields keep their defaults.
func NewEntry(id string) *Entry {
	return &Entry{
		ID:         id,
		Unread:     true,
		Categories: []Category{},
	}
}

// Equal reports whether two entries refer to the same entry.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}

// Key returns the value entries are hashed by. It is the entry id.
func (e *Entry) Key() string {
	return e.ID
}

// ToParameters returns the write representation of the entry.
//
// "published" is always sent. Title, content, summary, author, enclosure, alternate,
// keywords, tags and origin are sent only when set. Server-managed fields (id, crawl
// timestamps, read state, categories, engagement, fingerprints, visual) are never sent.
func (e *Entry) ToParameters() Parameters {
	p := Parameters{"published": e.Published}
	if e.Title != nil {
		p["title"] = *e.Title
	}
	if e.Content != nil {
		p["content"] = e.Content.ToParameters()
	}
	if e.Summary != nil {
		p["summary"] = e.Summary.ToParameters()
	}
	if e.Author != nil {
		p["author"] = *e.Author
	}
	if e.Enclosure != nil {
		p["enclosure"] = encodeAll(e.Enclosure)
	}
	if e.Alternate != nil {
		p["alternate"] = encodeAll(e.Alternate)
	}
	if e.Keywords != nil {
		p["keywords"] = e.Keywords
	}
	if e.Tags != nil {
		p["tags"] = encodeAll(e.Tags)
	}
	if e.Origin != nil {
		p["origin"] = e.Origin.ToParameters()
	}
	return p
}
