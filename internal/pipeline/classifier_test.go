package pipeline

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olihawkins/skyfilter/internal/predict"
)

// stubPredictor returns a fixed score per image.
type stubPredictor struct {
	scores []float64
	err    error
}

func (s *stubPredictor) Predict(batch []predict.Tensor) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(batch)], nil
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	var path = filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngBytes(t, color.NRGBA{R: 128, A: 255}), 0o644))
	return path
}

func TestClassifyAnnotatesScores(t *testing.T) {
	var dir = t.TempDir()
	var c = &Classifier{Predictor: &stubPredictor{scores: []float64{0.8, 0.4}}}

	var images, failed = c.Classify([]Image{
		{Filepath: writeImage(t, dir, "a.png"), Complete: true},
		{Filepath: writeImage(t, dir, "b.png"), Complete: true},
	})
	require.False(t, failed)
	require.Equal(t, 0.8, images[0].Score)
	require.Equal(t, 0.4, images[1].Score)
}

func TestClassifySentinelSignalsFailure(t *testing.T) {
	var dir = t.TempDir()
	var c = &Classifier{Predictor: &stubPredictor{scores: []float64{0.8, 0.01}}}

	var _, failed = c.Classify([]Image{
		{Filepath: writeImage(t, dir, "a.png"), Complete: true},
		{Filepath: writeImage(t, dir, "b.png"), Complete: true},
	})
	require.True(t, failed)
}

func TestClassifyUnreadableImageFails(t *testing.T) {
	var c = &Classifier{Predictor: &stubPredictor{scores: []float64{0.8}}}
	var _, failed = c.Classify([]Image{
		{Filepath: filepath.Join(t.TempDir(), "missing.png"), Complete: true},
	})
	require.True(t, failed)
}

func TestClassifyPredictorErrorFails(t *testing.T) {
	var dir = t.TempDir()
	var c = &Classifier{Predictor: &stubPredictor{err: errors.New("model unavailable")}}
	var _, failed = c.Classify([]Image{
		{Filepath: writeImage(t, dir, "a.png"), Complete: true},
	})
	require.True(t, failed)
}

func TestClassifyPost(t *testing.T) {
	require.Equal(t, 1, classifyPost([]Image{{Score: 0.2}, {Score: 0.5}}))
	require.Equal(t, 0, classifyPost([]Image{{Score: 0.2}, {Score: 0.49}}))
	require.Equal(t, 0, classifyPost(nil))
}
