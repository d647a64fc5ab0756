package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/domain"
)

const bacurauJSON = `{
	"id": 550,
	"title": "Bacurau",
	"release_date": "2019-08-29",
	"overview": "Um povoado do sertao.",
	"vote_average": 7.4,
	"vote_count": 1200,
	"runtime": 132,
	"poster_path": "/bacurau.jpg",
	"credits": {
		"cast": [{"name": "Sonia Braga", "order": 0}, {"name": "Udo Kier", "order": 1}],
		"crew": [{"name": "Kleber Mendonca Filho", "job": "Director"}, {"name": "Juliano Dornelles", "job": "Director"}, {"name": "X", "job": "Editor"}]
	}
}`

type fakeTMDB struct {
	searches atomic.Int32
	details  atomic.Int32
	status   int
	body     string
	hold     chan struct{} // when set, detail responses wait for it to close
}

func (f *fakeTMDB) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "pt-BR", r.URL.Query().Get("language"))
		assert.Equal(t, "Bacurau", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"results":[
			{"id": 1, "title": "Bacurau (curta)", "popularity": 1.5},
			{"id": 550, "title": "Bacurau", "original_title": "Bacurau", "release_date": "2019-08-29", "popularity": 30.2}
		]}`))
	})
	mux.HandleFunc("/movie/550", func(w http.ResponseWriter, r *http.Request) {
		f.details.Add(1)
		assert.Equal(t, "credits", r.URL.Query().Get("append_to_response"))
		if f.hold != nil {
			select {
			case <-f.hold:
			case <-r.Context().Done():
				return
			}
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		body := f.body
		if body == "" {
			body = bacurauJSON
		}
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeTMDB, key string) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	return New(Options{APIKey: key, BaseURL: srv.URL + "/", CacheDir: dir, RPS: 1000}), dir
}

func TestClient_Search(t *testing.T) {
	f := &fakeTMDB{}
	c, _ := newTestClient(t, f, "test-key")

	got := c.Search(context.Background(), "  Bacurau ")
	require.Len(t, got, 2)
	assert.Equal(t, []int64{1, 550}, []int64{got[0].ID, got[1].ID}, "TMDB order kept")
	assert.Equal(t, "2019-08-29", got[1].ReleaseDate)
	assert.Equal(t, int32(1), f.searches.Load())

	assert.Nil(t, c.Search(context.Background(), ""))
}

func TestClient_DetailsCachedAfterFirstFetch(t *testing.T) {
	f := &fakeTMDB{}
	c, dir := newTestClient(t, f, "test-key")
	ctx := context.Background()

	first, ok := c.Details(ctx, 550)
	require.True(t, ok)
	assert.Equal(t, "Bacurau", first.Title)
	assert.Equal(t, "2019", first.ReleaseYear())
	assert.Equal(t, 132, first.Runtime)
	assert.Equal(t, []string{"Kleber Mendonca Filho", "Juliano Dornelles"}, first.Directors)
	assert.Equal(t, []string{"Sonia Braga", "Udo Kier"}, first.Cast)
	assert.FileExists(t, NewCache(dir).Path(550))

	second, ok := c.Details(ctx, 550)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.details.Load())

	// A fresh client over the same cache directory never hits the network.
	fresh := New(Options{APIKey: "test-key", BaseURL: "http://127.0.0.1:1", CacheDir: dir})
	third, ok := fresh.Details(ctx, 550)
	require.True(t, ok)
	assert.Equal(t, first, third)
}

func TestClient_ConcurrentDetailsShareOneFetch(t *testing.T) {
	f := &fakeTMDB{}
	c, _ := newTestClient(t, f, "test-key")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Details(context.Background(), 550)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.details.Load())
}

func TestClient_DetailsOutliveFirstCallerCancel(t *testing.T) {
	f := &fakeTMDB{hold: make(chan struct{})}
	c, _ := newTestClient(t, f, "test-key")
	release := sync.OnceFunc(func() { close(f.hold) })
	t.Cleanup(release)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan bool, 1)
	go func() {
		_, ok := c.Details(ctx, 550)
		first <- ok
	}()
	require.Eventually(t, func() bool { return f.details.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	second := make(chan *domain.MovieDetails, 1)
	go func() {
		d, _ := c.Details(context.Background(), 550)
		second <- d
	}()
	cancel()
	assert.False(t, <-first, "the cancelled caller stops waiting")

	release()
	d := <-second
	require.NotNil(t, d)
	assert.Equal(t, "Bacurau", d.Title)
	assert.Equal(t, int32(1), f.details.Load())
}

func TestClient_CorruptArtifactIsRefetched(t *testing.T) {
	f := &fakeTMDB{}
	c, dir := newTestClient(t, f, "test-key")
	path := NewCache(dir).Path(550)
	require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0o644))

	d, ok := c.Details(context.Background(), 550)
	require.True(t, ok)
	assert.Equal(t, "Bacurau", d.Title)
	assert.Equal(t, int32(1), f.details.Load())

	payload, hit, err := NewCache(dir).Get(context.Background(), 550)
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, bacurauJSON, string(payload))
}

func TestClient_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		f    *fakeTMDB
	}{
		{"missing key", "", &fakeTMDB{}},
		{"server error", "test-key", &fakeTMDB{status: http.StatusInternalServerError}},
		{"bad json", "test-key", &fakeTMDB{body: "{not json"}},
		{"no id", "test-key", &fakeTMDB{body: `{"title":"x"}`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, dir := newTestClient(t, tc.f, tc.key)
			d, ok := c.Details(context.Background(), 550)
			assert.False(t, ok)
			assert.Nil(t, d)
			assert.NoFileExists(t, NewCache(dir).Path(550))
		})
	}
}

func TestClient_NetworkErrorIsEmpty(t *testing.T) {
	c := New(Options{APIKey: "k", BaseURL: "http://127.0.0.1:1", CacheDir: t.TempDir()})
	assert.Empty(t, c.Search(context.Background(), "Bacurau"))
	_, ok := c.Details(context.Background(), 7)
	assert.False(t, ok)
}
