package entity

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// DecodeListener observes every entry built by a Decoder.
// It receives the fully constructed entry and the JSON node it was built from,
// so embedders can attach derived state without wrapping the model.
type DecodeListener func(e *Entry, source gjson.Result)

// DecodeRecorder records decoding outcomes for observability.
type DecodeRecorder interface {
	// RecordEntryDecoded counts one successfully decoded entry.
	RecordEntryDecoded()
	// RecordMalformedField counts one skipped field with an unexpected JSON type.
	RecordMalformedField(field string)
	// RecordDecodeFailure counts one entry that could not be decoded.
	RecordDecodeFailure(reason string)
}

// Decoder turns API documents into entries.
//
// Decoding is lenient: missing optional fields become nil or their default, and present
// fields with an unexpected JSON type are skipped and logged. Only a missing entry id is
// a hard failure. The zero value is ready to use.
type Decoder struct {
	// Logger receives malformed-field warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// OnDecode, if set, is called once for each decoded entry.
	OnDecode DecodeListener
	// Metrics, if set, records decode outcomes.
	Metrics DecodeRecorder
}

// ParseEntry decodes a single entry document with a zero Decoder.
func ParseEntry(raw []byte) (*Entry, error) {
	return Decoder{}.DecodeEntry(raw)
}

// ParseEntries decodes a JSON array of entry documents with a zero Decoder.
func ParseEntries(raw []byte) ([]*Entry, error) {
	return Decoder{}.DecodeEntries(raw)
}

// DecodeEntry decodes a single entry from a raw JSON object.
func (d Decoder) DecodeEntry(raw []byte) (*Entry, error) {
	if !gjson.ValidBytes(raw) {
		d.recordFailure("invalid_json")
		return nil, fmt.Errorf("decode entry: %w", ErrInvalidDocument)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		d.recordFailure("not_object")
		return nil, fmt.Errorf("decode entry: %w", ErrInvalidDocument)
	}
	return d.EntryFromResult(doc)
}

// DecodeEntries decodes a raw JSON array of entries.
// Any element without an id fails the whole batch.
func (d Decoder) DecodeEntries(raw []byte) ([]*Entry, error) {
	if !gjson.ValidBytes(raw) {
		d.recordFailure("invalid_json")
		return nil, fmt.Errorf("decode entries: %w", ErrInvalidDocument)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		d.recordFailure("not_array")
		return nil, fmt.Errorf("decode entries: %w", ErrInvalidDocument)
	}
	return d.EntriesFromResult(doc)
}

// EntriesFromResult decodes every element of an already parsed JSON array.
func (d Decoder) EntriesFromResult(doc gjson.Result) ([]*Entry, error) {
	nodes := doc.Array()
	entries := make([]*Entry, 0, len(nodes))
	for i, node := range nodes {
		if !node.IsObject() {
			d.recordFailure("not_object")
			return nil, fmt.Errorf("decode entry %d: %w", i, ErrInvalidDocument)
		}
		e, err := d.EntryFromResult(node)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EntryFromResult decodes an entry from an already parsed JSON object.
func (d Decoder) EntryFromResult(doc gjson.Result) (*Entry, error) {
	f := fieldReader{doc: doc, d: d}

	id := f.str("id")
	if id == nil || *id == "" {
		d.recordFailure("missing_id")
		return nil, &FieldError{Field: "id", Err: ErrMissingRequiredField}
	}
	f.entryID = *id

	e := &Entry{
		ID:              *id,
		Title:           f.str("title"),
		Author:          f.str("author"),
		Content:         f.content("content"),
		Summary:         f.content("summary"),
		Crawled:         deref(f.int64("crawled")),
		Recrawled:       deref(f.int64("recrawled")),
		Published:       deref(f.int64("published")),
		Updated:         f.int64("updated"),
		ActionTimestamp: f.int64("actionTimestamp"),
		Alternate:       f.links("alternate"),
		Enclosure:       f.links("enclosure"),
		Keywords:        f.strings("keywords"),
		Tags:            f.tags("tags"),
		Categories:      f.categories("categories"),
		Unread:          true,
		Fingerprint:     f.str("fingerprint"),
		OriginID:        f.str("originId"),
		SID:             f.str("sid"),
	}
	if unread := f.bool("unread"); unread != nil {
		e.Unread = *unread
	}
	if engagement := f.int64("engagement"); engagement != nil {
		v := int(*engagement)
		e.Engagement = &v
	}
	if node, ok := f.object("origin"); ok {
		e.Origin = ParseOrigin(node)
	}
	if node, ok := f.object("visual"); ok {
		e.Visual = ParseVisual(node)
	}
	if e.Categories == nil {
		e.Categories = []Category{}
	}

	if d.Metrics != nil {
		d.Metrics.RecordEntryDecoded()
	}
	if d.OnDecode != nil {
		d.OnDecode(e, doc)
	}
	return e, nil
}

func (d Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Decoder) recordFailure(reason string) {
	if d.Metrics != nil {
		d.Metrics.RecordDecodeFailure(reason)
	}
}

// fieldReader extracts typed fields from one entry document.
// Every accessor returns nil (or false) for absent, null or wrongly typed fields.
type fieldReader struct {
	doc     gjson.Result
	d       Decoder
	entryID string
}

func (f fieldReader) get(key string) (gjson.Result, bool) {
	node := f.doc.Get(key)
	return node, present(node)
}

func (f fieldReader) malformed(field string, node gjson.Result, want string) {
	f.d.logger().Warn("skipping malformed entry field",
		slog.String("entry_id", f.entryID),
		slog.String("field", field),
		slog.String("want", want),
		slog.String("got", node.Type.String()),
		slog.Any("error", ErrMalformedValue))
	if f.d.Metrics != nil {
		f.d.Metrics.RecordMalformedField(field)
	}
}

func (f fieldReader) str(key string) *string {
	node, ok := f.get(key)
	if !ok {
		return nil
	}
	if node.Type != gjson.String {
		f.malformed(key, node, "string")
		return nil
	}
	s := node.String()
	return &s
}

func (f fieldReader) int64(key string) *int64 {
	node, ok := f.get(key)
	if !ok {
		return nil
	}
	if node.Type != gjson.Number {
		f.malformed(key, node, "number")
		return nil
	}
	v := node.Int()
	return &v
}

func (f fieldReader) bool(key string) *bool {
	node, ok := f.get(key)
	if !ok {
		return nil
	}
	if node.Type != gjson.True && node.Type != gjson.False {
		f.malformed(key, node, "boolean")
		return nil
	}
	v := node.Bool()
	return &v
}

func (f fieldReader) object(key string) (gjson.Result, bool) {
	node, ok := f.get(key)
	if !ok {
		return node, false
	}
	if !node.IsObject() {
		f.malformed(key, node, "object")
		return node, false
	}
	return node, true
}

func (f fieldReader) content(key string) *Content {
	node, ok := f.object(key)
	if !ok {
		return nil
	}
	return ParseContent(node)
}

// array returns the elements of an array field. The returned slice is non-nil
// whenever the key holds an array, even an empty one.
func (f fieldReader) array(key string) ([]gjson.Result, bool) {
	node, ok := f.get(key)
	if !ok {
		return nil, false
	}
	if !node.IsArray() {
		f.malformed(key, node, "array")
		return nil, false
	}
	items := node.Array()
	if items == nil {
		items = []gjson.Result{}
	}
	return items, true
}

func (f fieldReader) links(key string) []Link {
	items, ok := f.array(key)
	if !ok {
		return nil
	}
	links := make([]Link, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			f.malformed(key+"[]", item, "object")
			continue
		}
		links = append(links, ParseLink(item))
	}
	return links
}

func (f fieldReader) strings(key string) []string {
	items, ok := f.array(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			f.malformed(key+"[]", item, "string")
			continue
		}
		out = append(out, item.String())
	}
	return out
}

func (f fieldReader) tags(key string) []Tag {
	items, ok := f.array(key)
	if !ok {
		return nil
	}
	tags := make([]Tag, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			f.malformed(key+"[]", item, "object")
			continue
		}
		tags = append(tags, ParseTag(item))
	}
	return tags
}

func (f fieldReader) categories(key string) []Category {
	items, ok := f.array(key)
	if !ok {
		return nil
	}
	categories := make([]Category, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			f.malformed(key+"[]", item, "object")
			continue
		}
		categories = append(categories, ParseCategory(item))
	}
	return categories
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
