package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="The &amp; Title">
<meta property="og:description" content="A <b>bold</b>   claim">
<meta property="og:image" content="/img/cover.png">
<meta name="author" content="Ada Lovelace">
<meta property="article:published_time" content="2024-05-01T10:00:00Z">
<link rel="icon" href="/static/favicon.png">
<link rel="canonical" href="https://example.com/post/1">
<script>var x = "<meta property='og:title' content='nope'>";</script>
</head><body><p>hello</p></body></html>`

func TestParse_OpenGraph(t *testing.T) {
	base, _ := url.Parse("https://example.com/post/1?utm=x")
	m, err := Parse(strings.NewReader(articleHTML), base)
	require.NoError(t, err)

	assert.Equal(t, "The & Title", m.Title)
	assert.Equal(t, "A bold claim", m.Description)
	assert.Equal(t, "https://example.com/img/cover.png", m.Image)
	assert.Equal(t, "https://example.com/static/favicon.png", m.Logo)
	assert.Equal(t, "Ada Lovelace", m.Author)
	assert.Equal(t, "2024-05-01T10:00:00Z", m.Date)
	assert.Equal(t, "https://example.com/post/1", m.URL)
}

func TestParse_Fallbacks(t *testing.T) {
	base, _ := url.Parse("http://blog.test/a/b")
	doc := `<html><head><title>  Plain
	page </title><meta name="description" content="desc"></head>
	<body><time datetime="2023-01-02">Jan 2</time></body></html>`

	m, err := Parse(strings.NewReader(doc), base)
	require.NoError(t, err)

	assert.Equal(t, "Plain page", m.Title)
	assert.Equal(t, "desc", m.Description)
	assert.Equal(t, "2023-01-02", m.Date)
	assert.Equal(t, "http://blog.test/favicon.ico", m.Logo)
	assert.Equal(t, "http://blog.test/a/b", m.URL)
	assert.Empty(t, m.Image)
}

func TestFetcher_Validate(t *testing.T) {
	f := NewFetcher(time.Second, false)
	ctx := context.Background()

	for _, raw := range []string{"", "ftp://example.com/x", "not a url", "http://"} {
		_, err := f.Validate(ctx, raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
	for _, raw := range []string{"http://127.0.0.1/", "http://10.1.2.3/", "http://[::1]:8080/"} {
		_, err := f.Validate(ctx, raw)
		assert.ErrorIs(t, err, ErrPrivateURL, raw)
	}
	_, err := f.Validate(ctx, "https://93.184.216.34/page")
	assert.NoError(t, err)
}

func TestFetcher_Fetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>New home</title><meta property="og:image" content="pic.jpg"></head></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(2*time.Second, true)
	m, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, "New home", m.Title)
	assert.Equal(t, srv.URL+"/new", m.URL)
	assert.Equal(t, srv.URL+"/pic.jpg", m.Image)

	_, err = f.Fetch(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)

	_, err = NewFetcher(time.Second, false).Fetch(context.Background(), srv.URL+"/new")
	assert.ErrorIs(t, err, ErrPrivateURL)
}
