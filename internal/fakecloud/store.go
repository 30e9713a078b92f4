package fakecloud

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type tagRecord struct {
	id          string
	label       string
	description string
	seq         int
}

type entryRecord struct {
	id string
	// doc is the entry document as stored, without tags, read state and category membership.
	doc        []byte
	crawled    int64
	unread     bool
	tags       map[string]struct{}
	categories []string
	seq        int
}

// store is the in-memory account state of one user.
type store struct {
	mu         sync.Mutex
	userID     string
	now        func() time.Time
	tags       map[string]*tagRecord
	categories map[string]*tagRecord
	entries    map[string]*entryRecord
	seq        int
}

func newStore(userID string, now func() time.Time) *store {
	s := &store{
		userID:     userID,
		now:        now,
		tags:       map[string]*tagRecord{},
		categories: map[string]*tagRecord{},
		entries:    map[string]*entryRecord{},
	}
	s.tags[s.savedTagID()] = &tagRecord{id: s.savedTagID(), label: "global.saved"}
	return s
}

func (s *store) tagPrefix() string      { return "user/" + s.userID + "/tag/" }
func (s *store) categoryPrefix() string { return "user/" + s.userID + "/category/" }
func (s *store) savedTagID() string     { return s.tagPrefix() + "global.saved" }
func (s *store) globalAllID() string    { return s.categoryPrefix() + "global.all" }

func (s *store) nextSeq() int {
	s.seq++
	return s.seq
}

func (s *store) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *store) profileJSON() []byte {
	doc := []byte(`{}`)
	doc, _ = sjson.SetBytes(doc, "id", s.userID)
	doc, _ = sjson.SetBytes(doc, "email", "fake@example.com")
	doc, _ = sjson.SetBytes(doc, "givenName", "Fake")
	doc, _ = sjson.SetBytes(doc, "familyName", "User")
	doc, _ = sjson.SetBytes(doc, "fullName", "Fake User")
	doc, _ = sjson.SetBytes(doc, "locale", "en")
	doc, _ = sjson.SetBytes(doc, "client", "feedlykit")
	doc, _ = sjson.SetBytes(doc, "wave", "2024.1")
	doc, _ = sjson.SetBytes(doc, "created", int64(1422057600000))
	return doc
}

// ensureTag returns the tag with id, creating it when the id is a user tag id.
// Must be called with s.mu held.
func (s *store) ensureTag(id, label string) (*tagRecord, error) {
	if t, ok := s.tags[id]; ok {
		return t, nil
	}
	if !strings.HasPrefix(id, s.tagPrefix()) || id == s.tagPrefix() {
		return nil, errorf(http.StatusBadRequest, "invalid tag id: %s", id)
	}
	if label == "" {
		label = strings.TrimPrefix(id, s.tagPrefix())
	}
	t := &tagRecord{id: id, label: label, seq: s.nextSeq()}
	s.tags[id] = t
	return t, nil
}

func (s *store) addCategory(label string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.categoryPrefix() + label
	if _, ok := s.categories[id]; !ok {
		s.categories[id] = &tagRecord{id: id, label: label, seq: s.nextSeq()}
	}
	return id
}

func (s *store) listTags() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return labelsJSON(s.tags)
}

func (s *store) listCategories() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return labelsJSON(s.categories)
}

func labelsJSON(records map[string]*tagRecord) []byte {
	sorted := lo.Values(records)
	slices.SortFunc(sorted, func(a, b *tagRecord) int { return a.seq - b.seq })

	out := []byte(`[]`)
	for _, t := range sorted {
		item := []byte(`{}`)
		item, _ = sjson.SetBytes(item, "id", t.id)
		item, _ = sjson.SetBytes(item, "label", t.label)
		if t.description != "" {
			item, _ = sjson.SetBytes(item, "description", t.description)
		}
		out, _ = sjson.SetRawBytes(out, "-1", item)
	}
	return out
}

// insertEntry stores an entry document. The id is taken from the document or generated,
// tags listed in the document are attached and created when missing.
func (s *store) insertEntry(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errorf(http.StatusBadRequest, "invalid JSON body")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return "", errorf(http.StatusBadRequest, "entry must be a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := doc.Get("id").String()
	if id == "" {
		id = "fake_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if _, exists := s.entries[id]; exists {
		return "", errorf(http.StatusConflict, "entry already exists: %s", id)
	}

	rec := &entryRecord{
		id:      id,
		crawled: s.nowMillis(),
		unread:  true,
		tags:    map[string]struct{}{},
		seq:     s.nextSeq(),
	}
	if crawled := doc.Get("crawled"); crawled.Type == gjson.Number {
		rec.crawled = crawled.Int()
	}
	if unread := doc.Get("unread"); unread.IsBool() {
		rec.unread = unread.Bool()
	}

	var tagErr error
	doc.Get("tags").ForEach(func(_, node gjson.Result) bool {
		t, err := s.ensureTag(node.Get("id").String(), node.Get("label").String())
		if err != nil {
			tagErr = err
			return false
		}
		rec.tags[t.id] = struct{}{}
		return true
	})
	if tagErr != nil {
		return "", tagErr
	}
	doc.Get("categories").ForEach(func(_, node gjson.Result) bool {
		if cid := node.Get("id").String(); cid != "" {
			rec.categories = append(rec.categories, cid)
		}
		return true
	})

	stored := []byte(doc.Raw)
	for _, key := range []string{"tags", "unread", "categories"} {
		stored, _ = sjson.DeleteBytes(stored, key)
	}
	stored, _ = sjson.SetBytes(stored, "id", id)
	stored, _ = sjson.SetBytes(stored, "crawled", rec.crawled)
	rec.doc = stored

	s.entries[id] = rec
	return id, nil
}

// render returns the entry document as the API would serve it.
// Must be called with s.mu held.
func (s *store) render(rec *entryRecord) []byte {
	tags := []byte(`[]`)
	for _, id := range sortedTagIDs(rec.tags, s.tags) {
		t := s.tags[id]
		item := []byte(`{}`)
		item, _ = sjson.SetBytes(item, "id", t.id)
		item, _ = sjson.SetBytes(item, "label", t.label)
		tags, _ = sjson.SetRawBytes(tags, "-1", item)
	}

	categories := []byte(`[]`)
	for _, id := range rec.categories {
		item := []byte(`{}`)
		item, _ = sjson.SetBytes(item, "id", id)
		if c, ok := s.categories[id]; ok {
			item, _ = sjson.SetBytes(item, "label", c.label)
		}
		categories, _ = sjson.SetRawBytes(categories, "-1", item)
	}

	doc, _ := sjson.SetRawBytes(rec.doc, "tags", tags)
	doc, _ = sjson.SetRawBytes(doc, "categories", categories)
	doc, _ = sjson.SetBytes(doc, "unread", rec.unread)
	return doc
}

func sortedTagIDs(ids map[string]struct{}, tags map[string]*tagRecord) []string {
	out := lo.Filter(lo.Keys(ids), func(id string, _ int) bool {
		_, ok := tags[id]
		return ok
	})
	slices.SortFunc(out, func(a, b string) int { return tags[a].seq - tags[b].seq })
	return out
}

func (s *store) entryJSON(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return s.render(rec), true
}

// entriesJSON renders the known entries among ids, in request order.
func (s *store) entriesJSON(ids []string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []byte(`[]`)
	for _, id := range lo.Uniq(ids) {
		if rec, ok := s.entries[id]; ok {
			out, _ = sjson.SetRawBytes(out, "-1", s.render(rec))
		}
	}
	return out
}

func (s *store) tagEntries(tagIDs, entryIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.lookupEntries(entryIDs)
	if err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		t, err := s.ensureTag(tagID, "")
		if err != nil {
			return err
		}
		for _, rec := range recs {
			rec.tags[t.id] = struct{}{}
		}
	}
	return nil
}

func (s *store) untagEntries(tagIDs, entryIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range entryIDs {
		rec, ok := s.entries[id]
		if !ok {
			continue
		}
		for _, tagID := range tagIDs {
			delete(rec.tags, tagID)
		}
	}
	return nil
}

func (s *store) renameTag(tagID, label string) error {
	if strings.TrimSpace(label) == "" {
		return errorf(http.StatusBadRequest, "label is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[tagID]
	if !ok {
		return errorf(http.StatusNotFound, "tag not found: %s", tagID)
	}
	if isGlobal(tagID) {
		return errorf(http.StatusBadRequest, "system tags cannot be renamed: %s", tagID)
	}
	t.label = label
	return nil
}

func (s *store) deleteTags(tagIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tagIDs {
		if isGlobal(id) {
			return errorf(http.StatusBadRequest, "system tags cannot be deleted: %s", id)
		}
	}
	for _, id := range tagIDs {
		delete(s.tags, id)
		for _, rec := range s.entries {
			delete(rec.tags, id)
		}
	}
	return nil
}

func (s *store) mark(action string, entryIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.lookupEntries(entryIDs)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		switch action {
		case "markAsRead":
			rec.unread = false
		case "keepUnread":
			rec.unread = true
		case "markAsSaved":
			rec.tags[s.savedTagID()] = struct{}{}
		case "markAsUnsaved":
			delete(rec.tags, s.savedTagID())
		default:
			return errorf(http.StatusBadRequest, "unsupported action: %s", action)
		}
	}
	return nil
}

// lookupEntries resolves ids, failing on the first unknown one. Must be called with s.mu held.
func (s *store) lookupEntries(ids []string) ([]*entryRecord, error) {
	recs := make([]*entryRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.entries[id]
		if !ok {
			return nil, errorf(http.StatusNotFound, "entry not found: %s", id)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// streamQuery selects and orders the entries of one stream.
type streamQuery struct {
	streamID   string
	newestLast bool
	unreadOnly bool
	newerThan  int64
}

// stream returns the matching entries, newest first unless newestLast is set.
func (s *store) stream(q streamQuery) ([]*entryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match func(*entryRecord) bool
	switch {
	case q.streamID == s.globalAllID():
		match = func(*entryRecord) bool { return true }
	case strings.HasPrefix(q.streamID, s.tagPrefix()):
		if _, ok := s.tags[q.streamID]; !ok {
			return nil, errorf(http.StatusNotFound, "stream not found: %s", q.streamID)
		}
		match = func(rec *entryRecord) bool {
			_, ok := rec.tags[q.streamID]
			return ok
		}
	case strings.HasPrefix(q.streamID, s.categoryPrefix()):
		if _, ok := s.categories[q.streamID]; !ok {
			return nil, errorf(http.StatusNotFound, "stream not found: %s", q.streamID)
		}
		match = func(rec *entryRecord) bool { return slices.Contains(rec.categories, q.streamID) }
	case strings.HasPrefix(q.streamID, "feed/"):
		match = func(rec *entryRecord) bool {
			return gjson.GetBytes(rec.doc, "origin.streamId").String() == q.streamID
		}
	default:
		return nil, errorf(http.StatusBadRequest, "invalid stream id: %s", q.streamID)
	}

	out := lo.Filter(lo.Values(s.entries), func(rec *entryRecord, _ int) bool {
		if q.unreadOnly && !rec.unread {
			return false
		}
		if q.newerThan > 0 && rec.crawled <= q.newerThan {
			return false
		}
		return match(rec)
	})
	slices.SortFunc(out, func(a, b *entryRecord) int {
		if q.newestLast {
			return a.seq - b.seq
		}
		return b.seq - a.seq
	})
	return out, nil
}

func isGlobal(tagID string) bool {
	return strings.Contains(tagID, "/tag/global.")
}

// apiError is a failure reported to clients in the API's error format.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.message)
}

func errorf(status int, format string, args ...any) error {
	return &apiError{status: status, message: fmt.Sprintf(format, args...)}
}
