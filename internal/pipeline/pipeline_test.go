package pipeline

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olihawkins/skyfilter/internal/bsky"
	"github.com/olihawkins/skyfilter/internal/store"
)

type fakeThreads struct {
	images []bsky.PostImage
}

func (f *fakeThreads) FetchPostImages(context.Context, string) []bsky.PostImage {
	return f.images
}

type rngStub struct{ value float64 }

func (r rngStub) Float64() float64 { return r.value }

// newImageServer serves PNG bytes for every path except those containing
// "fail", which return a 500.
func newImageServer(t *testing.T) *httptest.Server {
	var body = pngBytes(t, color.NRGBA{G: 200, A: 255})
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "fail") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newPipeline(t *testing.T, dir string, threads bsky.ThreadFetcher, scores []float64, draw float64) *Pipeline {
	t.Helper()
	var fetcher = NewFetcher(dir)
	fetcher.Now = fixedClock
	return &Pipeline{
		Threads:    threads,
		Fetcher:    fetcher,
		Classifier: &Classifier{Predictor: &stubPredictor{scores: scores}},
		Rand:       rngStub{value: draw},
	}
}

func imagePath(dir, name string) string {
	return filepath.Join(dir, "2024-06-01", name)
}

func TestProcessComplete(t *testing.T) {
	var server = newImageServer(t)
	var dir = t.TempDir()
	var p = newPipeline(t, dir,
		&fakeThreads{images: []bsky.PostImage{{Fullsize: server.URL + "/x/abc@jpeg", Alt: ""}}},
		[]float64{0.8}, 0.9)

	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})

	require.Equal(t, store.StatusComplete, result.Status)
	require.Equal(t, 1, result.Classification)
	require.Len(t, result.Images, 1)
	require.Equal(t, 0.8, result.Images[0].Score)
	require.FileExists(t, imagePath(dir, "abc.jpeg"))
}

func TestProcessFetchPostError(t *testing.T) {
	var p = newPipeline(t, t.TempDir(), &fakeThreads{}, nil, 0.9)
	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})
	require.Equal(t, store.StatusFetchPostError, result.Status)
	require.Empty(t, result.Images)
}

func TestProcessFetchImageErrorRollsBack(t *testing.T) {
	var server = newImageServer(t)
	var dir = t.TempDir()
	var p = newPipeline(t, dir, &fakeThreads{images: []bsky.PostImage{
		{Fullsize: server.URL + "/x/one@jpeg"},
		{Fullsize: server.URL + "/x/fail@jpeg"},
		{Fullsize: server.URL + "/x/three@jpeg"},
	}}, []float64{0.8, 0.8, 0.8}, 0.9)

	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})

	require.Equal(t, store.StatusFetchImageError, result.Status)
	require.Empty(t, result.Images)
	require.NoFileExists(t, imagePath(dir, "one.jpeg"))
	require.NoFileExists(t, imagePath(dir, "fail.jpeg"))
	require.NoFileExists(t, imagePath(dir, "three.jpeg"))
}

func TestProcessClassifyErrorRollsBack(t *testing.T) {
	var server = newImageServer(t)
	var dir = t.TempDir()
	var p = newPipeline(t, dir,
		&fakeThreads{images: []bsky.PostImage{{Fullsize: server.URL + "/x/abc@jpeg"}}},
		[]float64{0.01}, 0.9)

	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})

	require.Equal(t, store.StatusClassifyImageError, result.Status)
	require.Empty(t, result.Images)
	require.NoFileExists(t, imagePath(dir, "abc.jpeg"))
}

func TestProcessDropsRandomNegative(t *testing.T) {
	var server = newImageServer(t)
	var dir = t.TempDir()
	var p = newPipeline(t, dir,
		&fakeThreads{images: []bsky.PostImage{{Fullsize: server.URL + "/x/abc@jpeg"}}},
		[]float64{0.2}, 0.1)

	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})

	require.Equal(t, store.StatusDropped, result.Status)
	require.Empty(t, result.Images)
	require.NoFileExists(t, imagePath(dir, "abc.jpeg"))
}

func TestProcessKeepsNegativeWhenDrawMisses(t *testing.T) {
	var server = newImageServer(t)
	var dir = t.TempDir()
	var p = newPipeline(t, dir,
		&fakeThreads{images: []bsky.PostImage{{Fullsize: server.URL + "/x/abc@jpeg"}}},
		[]float64{0.2}, 0.7)

	var result = p.Process(context.Background(), store.Post{ID: 1, URI: "at://post/1"})

	require.Equal(t, store.StatusComplete, result.Status)
	require.Equal(t, 0, result.Classification)
	require.FileExists(t, imagePath(dir, "abc.jpeg"))
}

func TestDropRandomNegativesUsesHighestScore(t *testing.T) {
	var p = &Pipeline{Rand: rngStub{value: 0.1}}
	require.True(t, p.dropRandomNegatives([]Image{{Score: 0.1}, {Score: 0.29}}))
	require.False(t, p.dropRandomNegatives([]Image{{Score: 0.1}, {Score: 0.3}}))

	p.Rand = rngStub{value: 0.5}
	require.False(t, p.dropRandomNegatives([]Image{{Score: 0.1}}))
}
