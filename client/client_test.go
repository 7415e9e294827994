package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return c
}

func TestEncodePath(t *testing.T) {
	cases := map[string]string{
		"configuration.yaml":        "configuration.yaml",
		"packages/lights.yaml":      "packages/lights.yaml",
		"my dir/a#b?.yaml":          "my%20dir/a%23b%3F.yaml",
		"caf\u00e9/100%.yaml":       "caf%C3%A9/100%25.yaml",
		"automations/morning&night": "automations/morning&night",
	}
	for in, want := range cases {
		require.Equal(t, want, EncodePath(in), "EncodePath(%q)", in)
	}
}

func TestReadFileEncodesSegments(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"filename":"my dir/a b.yaml","content":"x: 1\n","size":5,"modified":"2024-03-01T10:20:30.123456"}`)
	}))

	fc, err := c.ReadFile(context.Background(), "my dir/a b.yaml")
	require.NoError(t, err)
	require.Equal(t, "/api/files/my%20dir/a%20b.yaml", gotPath)
	require.Equal(t, "x: 1\n", fc.Content)
	require.Equal(t, int64(5), fc.Size)
	require.Equal(t, 2024, fc.Modified.Year())
}

func TestBaseURLSubPath(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/ingress/abc/api/entities", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `[{"entity_id":"light.kitchen","friendly_name":"Kitchen","domain":"light","state":"on"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/ingress/abc"}, nil)
	require.NoError(t, err)
	ents, err := c.FetchEntities(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/ingress/abc/api/entities", gotPath)
	require.Len(t, ents, 1)
	require.Equal(t, "Kitchen", ents[0].FriendlyName)
}

func TestFetchFiles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/files", r.URL.Path)
		io.WriteString(w, `[{"name":"packages","path":"packages","type":"directory","children":[
			{"name":"a.yaml","path":"packages/a.yaml","type":"file","size":3,"modified":"2024-01-02T03:04:05"}]},
			{"name":"configuration.yaml","path":"configuration.yaml","type":"file","size":10}]`)
	}))

	nodes, err := c.FetchFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.True(t, nodes[0].IsDir())
	require.Len(t, nodes[0].Children, 1)
	require.Equal(t, "packages/a.yaml", nodes[0].Children[0].Path)
}

func TestSaveFileSendsContent(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"success":true,"filename":"a.yaml","size":6}`)
	}))

	res, err := c.SaveFile(context.Background(), "a.yaml", "a: 'b'")
	require.NoError(t, err)
	require.Equal(t, "a: 'b'", got["content"])
	require.True(t, res.Success)
	require.Equal(t, int64(6), res.Size)
}

func TestSaveFileErrorBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"disk full"}`)
	}))

	_, err := c.SaveFile(context.Background(), "a.yaml", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "disk full", err.Error())
}

func TestSaveFileErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.SaveFile(context.Background(), "a.yaml", "x")
	require.EqualError(t, err, "Failed to save file: Forbidden")
}

func TestGetErrorMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down\n")
	}))

	_, err := c.FetchEntities(context.Background())
	require.EqualError(t, err, "Failed to fetch entities: Bad Gateway - upstream down")

	_, err = c.ReadFile(context.Background(), "x.yaml")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, "Failed to read file: Bad Gateway - upstream down", apiErr.Message)
}

func TestNoRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.FetchFiles(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestHealthAndServices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"domain":"light","services":{"turn_on":{}}}]`)
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.Health(context.Background()))
	raw, err := c.FetchServices(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `[{"domain":"light","services":{"turn_on":{}}}]`, string(raw))
}
