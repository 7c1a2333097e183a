package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"person", "person"},
		{"dept_no", "dept_no"},
		{"a b", "a%20b"},
		{"s:t", "s%3At"},
		{"a,b/c", "a%2Cb%2Fc"},
		{"ü", "%C3%BC"},
		{"a~b.c-d", "a~b.c-d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.name))
		})
	}

	assert.Equal(t, "RID,a%20b", JoinNames([]string{"RID", "a b"}))
	assert.Equal(t, "", JoinNames(nil))
}

func TestHTTPClient(t *testing.T) {
	var got struct {
		method, path, auth, cookie, contentType string
		body                                    map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.auth = r.Header.Get("Authorization")
		got.cookie = r.Header.Get("Cookie")
		got.contentType = r.Header.Get("Content-Type")
		got.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &got.body)
		}
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "no such table", http.StatusNotFound)
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/garbage":
			_, _ = w.Write([]byte("not json"))
		default:
			_, _ = w.Write([]byte(`{"comment":"stored"}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewHTTPClient(srv.URL+"/", 5*time.Second, WithBearerToken("tok"), WithCookie("sess"))

	var result map[string]any
	require.NoError(t, c.Put(ctx, "/schema/s%20x/table/t", map[string]any{"comment": "new"}, &result))
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/schema/s%20x/table/t", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "webauthn=sess", got.cookie)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, map[string]any{"comment": "new"}, got.body)
	assert.Equal(t, map[string]any{"comment": "stored"}, result)

	require.NoError(t, c.Get(ctx, "/schema", &result))
	assert.Equal(t, http.MethodGet, got.method)
	assert.Empty(t, got.contentType)

	require.NoError(t, c.Post(ctx, "/schema/s", nil, nil))
	assert.Equal(t, http.MethodPost, got.method)

	require.NoError(t, c.Delete(ctx, "/empty"))
	assert.Equal(t, http.MethodDelete, got.method)

	err := c.Get(ctx, "/missing", &result)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such table", apiErr.Message)
	assert.Equal(t, "GET /missing: HTTP 404: no such table", apiErr.Error())

	assert.Error(t, c.Get(ctx, "/garbage", &result))
	assert.Error(t, c.Put(ctx, "/x", map[string]any{"bad": func() {}}, nil))
}

func TestAPIErrorDefaultMessage(t *testing.T) {
	err := &APIError{Status: http.StatusConflict, Method: http.MethodPost, Path: "/schema/s"}
	assert.Equal(t, "POST /schema/s: HTTP 409: Conflict", err.Error())
}

type staticClient struct {
	doc map[string]any
}

func (c staticClient) Get(_ context.Context, _ string, result any) error {
	return echo(c.doc, result)
}
func (staticClient) Put(context.Context, string, any, any) error { return errors.New("unexpected put") }
func (staticClient) Post(context.Context, string, any, any) error { return errors.New("unexpected post") }
func (staticClient) Delete(context.Context, string) error { return errors.New("unexpected delete") }

func TestDryRunClient(t *testing.T) {
	ctx := context.Background()

	c := NewDryRunClient(nil)
	assert.ErrorIs(t, c.Get(ctx, "/schema", nil), ErrNoSource)

	c = NewDryRunClient(staticClient{doc: map[string]any{"schemas": map[string]any{}}})
	var doc map[string]any
	require.NoError(t, c.Get(ctx, "/schema", &doc))
	assert.Contains(t, doc, "schemas")

	var stored map[string]any
	require.NoError(t, c.Put(ctx, "/schema/s/table/t", map[string]any{"comment": "x"}, &stored))
	assert.Equal(t, map[string]any{"comment": "x"}, stored)
	require.NoError(t, c.Post(ctx, "/schema/s2", nil, nil))
	require.NoError(t, c.Delete(ctx, "/schema/s3"))

	reqs := c.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, Request{Method: http.MethodPut, Path: "/schema/s/table/t", Body: map[string]any{"comment": "x"}}, reqs[0])
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, Request{Method: http.MethodDelete, Path: "/schema/s3"}, reqs[2])

	reqs[0].Path = "changed"
	assert.Equal(t, "/schema/s/table/t", c.Requests()[0].Path, "requests are copied")
}
