package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchDecodesResults(t *testing.T) {
	var gotAuth, gotQuery, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"url":"https://example.com/a","title":"A","content":"first"},{"url":"https://example.com/b","title":"B","content":"second","img_src":"https://example.com/b.png"}]}`))
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "secret-key", time.Second)
	results, err := cli.Search(context.Background(), "go concurrency")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "go concurrency", gotQuery)
	assert.Equal(t, "json", gotFormat)

	require.Len(t, results, 2)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "A", results[0].Title)
	assert.Equal(t, "https://example.com/b.png", results[1].ImgSrc)
}

func TestSearchOmitsAuthWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "", time.Second)
	results, err := cli.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, gotAuth)
}

func TestSearchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "", time.Second)
	_, err := cli.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearchRequiresEndpoint(t *testing.T) {
	cli := NewHTTPClient("", "", time.Second)
	_, err := cli.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSearchRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cli := NewHTTPClient(srv.URL, "", time.Second)
	_, err := cli.Search(ctx, "slow")
	assert.Error(t, err)
}
