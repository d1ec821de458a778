package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Document is a resource instance as the backend stores it.
type Document = map[string]any

// RecordedRequest is what the backend saw of one request.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
}

// Backend is an in-memory marketplace REST backend for tests. Collections
// are addressed by their path segment ("orders", "load-types"); profiles and
// location search have their own routes.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	collections map[string]map[string]Document
	profile     Document
	locations   []Document
	nextID      int
	requireAuth bool
	failures    map[string][]int
	hold        map[string]chan struct{}
	requests    []RecordedRequest
}

// NewBackend starts a backend that is closed with the test.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		collections: make(map[string]map[string]Document),
		failures:    make(map[string][]int),
		hold:        make(map[string]chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/profiles/me", b.getProfile)
	r.Get("/search", b.search)
	r.Route("/{collection}", func(r chi.Router) {
		r.Get("/", b.list)
		r.Post("/", b.create)
		r.Get("/my", b.mine)
		r.Get("/filter", b.filter)
		r.Get("/{id}", b.get)
		r.Put("/{id}", b.update)
		r.Patch("/{id}/status", b.patchStatus)
		r.Delete("/{id}", b.delete)
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		b.mu.Lock()
		for key, ch := range b.hold {
			close(ch)
			delete(b.hold, key)
		}
		b.mu.Unlock()
		b.Server.Close()
	})
	return b
}

// URL returns the base URL of the backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// RequireAuth makes every request without a bearer token fail with 401.
func (b *Backend) RequireAuth() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requireAuth = true
}

// Seed stores doc in collection. An "id" is assigned when missing.
func (b *Backend) Seed(collection string, doc Document) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.put(collection, copyDoc(doc))
}

// SetProfile sets the document served by /profiles/me. nil makes it 404.
func (b *Backend) SetProfile(doc Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profile = copyDoc(doc)
}

// SetLocations sets the documents searched by /search.
func (b *Backend) SetLocations(docs ...Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locations = docs
}

// FailNext makes the next request to "METHOD /path" answer with status.
func (b *Backend) FailNext(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], status)
}

// Hold blocks requests to "METHOD /path" until the returned function is
// called.
func (b *Backend) Hold(method, path string) (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	ch := make(chan struct{})
	b.hold[key] = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.hold[key] == ch {
				delete(b.hold, key)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

// Calls counts requests to "METHOD /path", ignoring the query string.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// Requests returns every recorded request in arrival order.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// LastRequest returns the most recent request.
func (b *Backend) LastRequest() (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return RecordedRequest{}, false
	}
	return b.requests[len(b.requests)-1], true
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		hold := b.hold[key]
		var status int
		if queued := b.failures[key]; len(queued) > 0 {
			status = queued[0]
			b.failures[key] = queued[1:]
		}
		requireAuth := b.requireAuth
		b.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if requireAuth && !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.match(chi.URLParam(r, "collection"), func(Document) bool { return true }))
}

func (b *Backend) mine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.match(chi.URLParam(r, "collection"), func(doc Document) bool {
		return doc["owner"] == "me"
	}))
}

func (b *Backend) filter(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	writeJSON(w, http.StatusOK, b.match(chi.URLParam(r, "collection"), func(doc Document) bool {
		for field, values := range params {
			if !matchesAny(doc[field], values) {
				return false
			}
		}
		return true
	}))
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	doc, ok := b.collections[chi.URLParam(r, "collection")][chi.URLParam(r, "id")]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delete(doc, "id")

	b.mu.Lock()
	b.put(chi.URLParam(r, "collection"), doc)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, doc)
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[collection][id]; !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	doc["id"] = id
	b.collections[collection][id] = doc
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) patchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "status required")
		return
	}
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.collections[collection][id]
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	doc["status"] = body.Status
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[collection][id]; !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	delete(b.collections[collection], id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) getProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	profile := b.profile
	b.mu.Unlock()
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))

	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Document{}
	for _, doc := range b.locations {
		name, _ := doc["name"].(string)
		if strings.Contains(strings.ToLower(name), q) {
			out = append(out, doc)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// put must be called with b.mu held.
func (b *Backend) put(collection string, doc Document) string {
	if b.collections[collection] == nil {
		b.collections[collection] = make(map[string]Document)
	}
	id, _ := doc["id"].(string)
	if id == "" {
		b.nextID++
		id = fmt.Sprintf("%s-%d", collection, b.nextID)
		doc["id"] = id
	}
	b.collections[collection][id] = doc
	return id
}

func (b *Backend) match(collection string, keep func(Document) bool) []Document {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Document{}
	for _, doc := range b.collections[collection] {
		if keep(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"])
	})
	return out
}

func matchesAny(field any, values []string) bool {
	switch v := field.(type) {
	case []any:
		for _, item := range v {
			if matchesAny(item, values) {
				return true
			}
		}
		return false
	default:
		s := fmt.Sprint(v)
		for _, want := range values {
			if s == want {
				return true
			}
		}
		return false
	}
}

func copyDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
