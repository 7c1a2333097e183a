// Package catalogtest serves an in-memory catalog for tests. It keeps one
// model document and applies the schema-management requests the model
// tree issues, digesting values the way the real service does.
package catalogtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
)

// Server is a fake catalog bound to an httptest server
type Server struct {
	mu       sync.Mutex
	doc      map[string]any
	requests []catalog.Request
	failures map[string]int
	srv      *httptest.Server
}

// NewServer starts a fake catalog holding doc, which may be any value that
// marshals to a model document. The server is closed when the test ends.
func NewServer(t testing.TB, doc any) *Server {
	t.Helper()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal catalog document: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("failed to decode catalog document: %v", err)
	}
	if generic == nil {
		generic = map[string]any{}
	}
	for _, field := range []string{"acls", "annotations", "schemas"} {
		if _, ok := generic[field].(map[string]any); !ok {
			generic[field] = map[string]any{}
		}
	}

	s := &Server{doc: generic, failures: map[string]int{}}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the catalog base URL
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns an HTTP catalog client for this server
func (s *Server) Client() *catalog.HTTPClient {
	return catalog.NewHTTPClient(s.srv.URL, 5*time.Second, catalog.WithBearerToken("test-token"))
}

// Requests returns every request received so far
func (s *Server) Requests() []catalog.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Request(nil), s.requests...)
}

// Writes returns every non-GET request received so far
func (s *Server) Writes() []catalog.Request {
	var writes []catalog.Request
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			writes = append(writes, r)
		}
	}
	return writes
}

// ResetRequests forgets the recorded requests
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Document returns a copy of the stored model document
func (s *Server) Document() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsondoc.CloneMap(s.doc)
}

// FailNext makes the next request with this method and path fail with status
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/schema", s.getModel)
	r.Post("/schema", s.createSchemas)
	r.Put("/annotation", s.putModelField("annotations"))
	r.Put("/acl", s.putModelField("acls"))

	r.Put("/schema/{schema}", s.alterSchema)
	r.Delete("/schema/{schema}", s.deleteSchema)

	r.Post("/schema/{schema}/table", s.createTable)
	r.Put("/schema/{schema}/table/{table}", s.alterTable)
	r.Delete("/schema/{schema}/table/{table}", s.deleteTable)

	r.Post("/schema/{schema}/table/{table}/column", s.createColumn)
	r.Put("/schema/{schema}/table/{table}/column/{column}", s.alterColumn)
	r.Delete("/schema/{schema}/table/{table}/column/{column}", s.deleteColumn)

	r.Post("/schema/{schema}/table/{table}/key", s.createKey)
	r.Put("/schema/{schema}/table/{table}/key/{columns}", s.alterKey)
	r.Delete("/schema/{schema}/table/{table}/key/{columns}", s.deleteKey)

	r.Post("/schema/{schema}/table/{table}/foreignkey", s.createForeignKey)
	r.Put("/schema/{schema}/table/{table}/foreignkey/{columns}/reference/{target}/{pkcolumns}", s.alterForeignKey)
	r.Delete("/schema/{schema}/table/{table}/foreignkey/{columns}/reference/{target}/{pkcolumns}", s.deleteForeignKey)

	return r
}

// record logs each request, decodes its body and serializes handlers
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body any
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "malformed JSON body: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		path := r.URL.EscapedPath()
		s.requests = append(s.requests, catalog.Request{Method: r.Method, Path: path, Body: body})
		if status, ok := s.failures[r.Method+" "+path]; ok {
			delete(s.failures, r.Method+" "+path)
			http.Error(w, "injected failure", status)
			return
		}

		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), body)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func paramList(r *http.Request, name string) []string {
	raw := chi.URLParam(r, name)
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		if v, err := url.PathUnescape(p); err == nil {
			parts[i] = v
		}
	}
	return parts
}

func notFound(w http.ResponseWriter, format string, args ...any) {
	http.Error(w, fmt.Sprintf(format, args...), http.StatusNotFound)
}

func conflict(w http.ResponseWriter, format string, args ...any) {
	http.Error(w, fmt.Sprintf(format, args...), http.StatusConflict)
}
