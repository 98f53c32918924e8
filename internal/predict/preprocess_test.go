package predict

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedRand struct{ values []float64 }

func (f *fixedRand) Float64() float64 {
	var v = f.values[0]
	f.values = f.values[1:]
	return v
}

func TestRandomPredictorDrawsPerImage(t *testing.T) {
	var p = NewRandom(&fixedRand{values: []float64{0.1, 0.9}})
	var scores, err = p.Predict(make([]Tensor, 2))
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.9}, scores)
}

func TestPreprocessDimensions(t *testing.T) {
	var src = image.NewNRGBA(image.Rect(0, 0, 30, 10))
	var tensor = Preprocess(src)
	require.Equal(t, inputSize, tensor.Height)
	require.Equal(t, inputSize, tensor.Width)
	require.Len(t, tensor.Data, 3*inputSize*inputSize)
}

func TestPreprocessNormalizesChannels(t *testing.T) {
	var src = image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	var tensor = Preprocess(src)
	var plane = inputSize * inputSize
	var center = (inputSize/2)*inputSize + inputSize/2

	require.InDelta(t, (1.0-0.485)/0.229, tensor.Data[center], 0.01)
	require.InDelta(t, (1.0-0.456)/0.224, tensor.Data[plane+center], 0.01)
	require.InDelta(t, (1.0-0.406)/0.225, tensor.Data[2*plane+center], 0.01)
}
