// Package fakecloud is an in-memory stand-in for the Feedly Cloud API v3.
//
// It serves the profile, tag, category, entry, stream and marker endpoints for a
// single user, requires a bearer token, and answers failures in the API's error
// format. Tests point a cloudapi client at an httptest server wrapping it.
package fakecloud

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"feedlykit/internal/observability/logging"
	"feedlykit/internal/observability/tracing"
	"feedlykit/internal/requestid"
)

const (
	// DefaultToken is the bearer token accepted unless WithToken is used.
	DefaultToken = "fake-access-token"
	// DefaultUserID is the profile id unless WithUserID is used.
	DefaultUserID = "c805fcbf-3acf-4302-a97e-d82f9d7c897f"

	defaultCount     = 20
	maxContentsCount = 1000
	maxIDsCount      = 10000
	maxBodyBytes     = 8 << 20
)

// Server is the fake API. It implements http.Handler.
type Server struct {
	token   string
	userID  string
	now     func() time.Time
	logger  *slog.Logger
	store   *store
	handler http.Handler

	mu       sync.Mutex
	hits     map[string]int
	failures []injectedFailure
}

type injectedFailure struct {
	status     int
	retryAfter string
}

// Option configures a Server.
type Option func(*Server)

// WithToken sets the accepted bearer token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithUserID sets the profile id that prefixes every user stream id.
func WithUserID(id string) Option {
	return func(s *Server) { s.userID = id }
}

// WithClock sets the clock used for crawl and update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the request logger. The default discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a fake API with an empty account.
func New(opts ...Option) *Server {
	s := &Server{
		token:  DefaultToken,
		userID: DefaultUserID,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
		hits:   map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = newStore(s.userID, s.now)
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Token returns the accepted bearer token.
func (s *Server) Token() string { return s.token }

// UserID returns the profile id.
func (s *Server) UserID() string { return s.userID }

// GlobalAllID returns the id of the stream of every entry.
func (s *Server) GlobalAllID() string { return s.store.globalAllID() }

// SeedEntry stores an entry document as if it had been crawled and returns its id.
// Documents without an id get a generated one; tags in the document are created.
func (s *Server) SeedEntry(doc []byte) (string, error) {
	return s.store.insertEntry(doc)
}

// AddCategory creates a category and returns its id.
func (s *Server) AddCategory(label string) string {
	return s.store.addCategory(label)
}

// FailNext makes the next n requests fail with status before reaching any handler.
// retryAfter, when not empty, is sent as the Retry-After header.
func (s *Server) FailNext(n, status int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, injectedFailure{status: status, retryAfter: retryAfter})
	}
}

// Hits returns how many requests reached the named route, injected failures included.
// Route names are the operation names used by the client, e.g. "entries.get".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// handlerFuncE is an http.HandlerFunc that returns an error.
// A returned *apiError is written with its status; any other error is a 500.
type handlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f handlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}
	apiErr := &apiError{}
	if !errors.As(err, &apiErr) {
		apiErr = &apiError{status: http.StatusInternalServerError, message: "internal server error"}
	}
	writeError(w, r, apiErr)
}

type errRouter struct {
	*mux.Router
}

func (r errRouter) handleE(path, name string, f handlerFuncE, methods ...string) {
	r.Handle(path, f).Methods(methods...).Name(name)
}

func (s *Server) routes() http.Handler {
	r := errRouter{Router: mux.NewRouter().UseEncodedPath()}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, &apiError{status: http.StatusNotFound, message: "no such endpoint: " + req.URL.Path})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, &apiError{status: http.StatusMethodNotAllowed, message: "method not allowed"})
	})

	r.Use(traceRoute, s.countHits, s.injectFailures, s.requireToken)

	r.handleE("/v3/profile", "profile.get", s.getProfile, http.MethodGet)
	r.handleE("/v3/tags", "tags.list", s.listTags, http.MethodGet)
	r.handleE("/v3/categories", "categories.list", s.listCategories, http.MethodGet)
	r.handleE("/v3/entries", "entries.create", s.createEntry, http.MethodPost)
	r.handleE("/v3/entries/.mget", "entries.mget", s.mgetEntries, http.MethodPost)
	r.handleE("/v3/entries/{entryId}", "entries.get", s.getEntry, http.MethodGet)
	r.handleE("/v3/tags/{tagIds}", "tags.put", s.tagEntries, http.MethodPut)
	r.handleE("/v3/tags/{tagId}", "tags.rename", s.renameTag, http.MethodPost)
	r.handleE("/v3/tags/{tagIds}", "tags.delete", s.deleteTags, http.MethodDelete)
	r.handleE("/v3/tags/{tagIds}/{entryIds}", "tags.untag", s.untagEntries, http.MethodDelete)
	r.handleE("/v3/streams/contents", "streams.contents", s.streamContents, http.MethodGet)
	r.handleE("/v3/streams/ids", "streams.ids", s.streamIDs, http.MethodGet)
	r.handleE("/v3/markers", "markers", s.markers, http.MethodPost)

	return requestid.Middleware(s.accessLog(r))
}

// traceRoute opens a server span named after the matched route, e.g. "fakecloud.entries.get".
func traceRoute(next http.Handler) http.Handler {
	return &tracing.Handler{
		Next: next,
		SpanName: func(r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				return "fakecloud." + route.GetName()
			}
			return ""
		},
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := logging.WithRequestID(r.Context(), s.logger)
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
		logger.Debug("fake API request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.EscapedPath()),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			s.mu.Lock()
			s.hits[route.GetName()]++
			s.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var failure *injectedFailure
		if len(s.failures) > 0 {
			failure = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if failure == nil {
			next.ServeHTTP(w, r)
			return
		}
		if failure.retryAfter != "" {
			w.Header().Set("Retry-After", failure.retryAfter)
		}
		writeError(w, r, &apiError{status: failure.status, message: strings.ToLower(http.StatusText(failure.status))})
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, r, &apiError{status: http.StatusUnauthorized, message: "authorization required"})
			return
		}
		if token != s.token {
			writeError(w, r, &apiError{status: http.StatusUnauthorized, message: "token invalid"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getProfile(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, s.store.profileJSON())
	return nil
}

func (s *Server) listTags(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, s.store.listTags())
	return nil
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, s.store.listCategories())
	return nil
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	// Clients cannot choose ids or read state of new entries.
	for _, key := range []string{"id", "unread", "crawled"} {
		body, _ = sjson.DeleteBytes(body, key)
	}
	id, err := s.store.insertEntry(body)
	if err != nil {
		return err
	}
	out, _ := sjson.SetBytes([]byte(`[]`), "-1", id)
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) error {
	ids, err := pathIDs(r, "entryId")
	if err != nil {
		return err
	}
	doc, ok := s.store.entryJSON(ids[0])
	if !ok {
		return errorf(http.StatusNotFound, "entry not found: %s", ids[0])
	}
	out, _ := sjson.SetRawBytes([]byte(`[]`), "-1", doc)
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) mgetEntries(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(body)
	// Both {"ids": [...]} and a bare array are accepted.
	list := doc
	if doc.IsObject() {
		list = doc.Get("ids")
	}
	if !list.IsArray() {
		return errorf(http.StatusBadRequest, "ids are required")
	}
	ids := stringArray(list)
	if len(ids) > 1000 {
		return errorf(http.StatusBadRequest, "too many ids: %d", len(ids))
	}
	writeJSON(w, http.StatusOK, s.store.entriesJSON(ids))
	return nil
}

func (s *Server) tagEntries(w http.ResponseWriter, r *http.Request) error {
	tagIDs, err := pathIDs(r, "tagIds")
	if err != nil {
		return err
	}
	body, err := readBody(r)
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(body)
	var entryIDs []string
	if id := doc.Get("entryId").String(); id != "" {
		entryIDs = append(entryIDs, id)
	}
	entryIDs = append(entryIDs, stringArray(doc.Get("entryIds"))...)
	if len(entryIDs) == 0 {
		return errorf(http.StatusBadRequest, "entryId or entryIds is required")
	}
	if err := s.store.tagEntries(tagIDs, entryIDs); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) untagEntries(w http.ResponseWriter, r *http.Request) error {
	tagIDs, err := pathIDs(r, "tagIds")
	if err != nil {
		return err
	}
	entryIDs, err := pathIDs(r, "entryIds")
	if err != nil {
		return err
	}
	if err := s.store.untagEntries(tagIDs, entryIDs); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) renameTag(w http.ResponseWriter, r *http.Request) error {
	ids, err := pathIDs(r, "tagId")
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return errorf(http.StatusBadRequest, "exactly one tag id is required")
	}
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := s.store.renameTag(ids[0], gjson.GetBytes(body, "label").String()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) deleteTags(w http.ResponseWriter, r *http.Request) error {
	tagIDs, err := pathIDs(r, "tagIds")
	if err != nil {
		return err
	}
	if err := s.store.deleteTags(tagIDs); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) streamContents(w http.ResponseWriter, r *http.Request) error {
	page, err := s.page(r, maxContentsCount)
	if err != nil {
		return err
	}

	items := []byte(`[]`)
	s.store.mu.Lock()
	for _, rec := range page.items {
		items, _ = sjson.SetRawBytes(items, "-1", s.store.render(rec))
	}
	s.store.mu.Unlock()

	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "id", page.streamID)
	out, _ = sjson.SetBytes(out, "updated", s.now().UnixMilli())
	if page.continuation != "" {
		out, _ = sjson.SetBytes(out, "continuation", page.continuation)
	}
	out, _ = sjson.SetRawBytes(out, "items", items)
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) streamIDs(w http.ResponseWriter, r *http.Request) error {
	page, err := s.page(r, maxIDsCount)
	if err != nil {
		return err
	}
	ids := lo.Map(page.items, func(rec *entryRecord, _ int) string { return rec.id })

	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "ids", ids)
	if page.continuation != "" {
		out, _ = sjson.SetBytes(out, "continuation", page.continuation)
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type streamPage struct {
	streamID     string
	items        []*entryRecord
	continuation string
}

// page applies the stream query parameters. The continuation token is the offset
// of the next page.
func (s *Server) page(r *http.Request, maxCount int) (*streamPage, error) {
	q := r.URL.Query()
	streamID := q.Get("streamId")
	if streamID == "" {
		return nil, errorf(http.StatusBadRequest, "streamId is required")
	}

	count := defaultCount
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, errorf(http.StatusBadRequest, "invalid count: %s", raw)
		}
		count = min(n, maxCount)
	}
	offset := 0
	if raw := q.Get("continuation"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errorf(http.StatusBadRequest, "invalid continuation: %s", raw)
		}
		offset = n
	}
	var newerThan int64
	if raw := q.Get("newerThan"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "invalid newerThan: %s", raw)
		}
		newerThan = n
	}
	ranked := q.Get("ranked")
	if ranked != "" && ranked != "newest" && ranked != "oldest" {
		return nil, errorf(http.StatusBadRequest, "invalid ranked: %s", ranked)
	}

	recs, err := s.store.stream(streamQuery{
		streamID:   streamID,
		newestLast: ranked == "oldest",
		unreadOnly: q.Get("unreadOnly") == "true",
		newerThan:  newerThan,
	})
	if err != nil {
		return nil, err
	}

	page := &streamPage{streamID: streamID, items: []*entryRecord{}}
	if offset < len(recs) {
		end := min(offset+count, len(recs))
		page.items = recs[offset:end]
		if end < len(recs) {
			page.continuation = strconv.Itoa(end)
		}
	}
	return page, nil
}

func (s *Server) markers(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(body)
	if t := doc.Get("type").String(); t != "entries" {
		return errorf(http.StatusBadRequest, "unsupported marker type: %q", t)
	}
	entryIDs := stringArray(doc.Get("entryIds"))
	if len(entryIDs) == 0 {
		return errorf(http.StatusBadRequest, "entryIds is required")
	}
	if err := s.store.mark(doc.Get("action").String(), entryIDs); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

// pathIDs splits a comma-joined path variable and unescapes each id.
func pathIDs(r *http.Request, name string) ([]string, error) {
	raw := mux.Vars(r)[name]
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		id, err := url.PathUnescape(part)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "invalid id %q: %v", part, err)
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errorf(http.StatusBadRequest, "%s is required", name)
	}
	return ids, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errorf(http.StatusBadRequest, "read body: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, errorf(http.StatusBadRequest, "invalid JSON body")
	}
	return body, nil
}

func stringArray(node gjson.Result) []string {
	var out []string
	node.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
		return true
	})
	return out
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError answers in the API's error format. The error id is the request id.
func writeError(w http.ResponseWriter, r *http.Request, apiErr *apiError) {
	if apiErr.status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Debug("fake API failure",
			slog.Int("status", apiErr.status),
			slog.String("message", apiErr.message))
	}
	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "errorCode", apiErr.status)
	out, _ = sjson.SetBytes(out, "errorId", requestid.FromContext(r.Context()))
	out, _ = sjson.SetBytes(out, "errorMessage", apiErr.message)
	writeJSON(w, apiErr.status, out)
}
