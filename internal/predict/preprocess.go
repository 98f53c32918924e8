package predict

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Model input dimensions and the normalization constants the classifier
// was trained with.
const inputSize = 512

var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a CHW float32 image tensor.
type Tensor struct {
	Data   []float32
	Height int
	Width  int
}

// Load reads and preprocesses the image at path into a model input tensor.
func Load(path string) (Tensor, error) {
	var img, err = imaging.Open(path)
	if err != nil {
		return Tensor{}, fmt.Errorf("opening image %s: %w", path, err)
	}
	return Preprocess(img), nil
}

// Preprocess pads the image to a square, resizes to the model input size,
// and channel-normalizes into a CHW tensor.
func Preprocess(src image.Image) Tensor {
	var bounds = src.Bounds()
	var side = max(bounds.Dx(), bounds.Dy())

	var canvas = imaging.New(side, side, color.NRGBA{A: 255})
	var padded = imaging.PasteCenter(canvas, src)
	var resized = imaging.Resize(padded, inputSize, inputSize, imaging.Lanczos)

	var plane = inputSize * inputSize
	var data = make([]float32, 3*plane)
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			var px = resized.NRGBAAt(x, y)
			var i = y*inputSize + x
			data[i] = (float32(px.R)/255 - channelMean[0]) / channelStd[0]
			data[plane+i] = (float32(px.G)/255 - channelMean[1]) / channelStd[1]
			data[2*plane+i] = (float32(px.B)/255 - channelMean[2]) / channelStd[2]
		}
	}
	return Tensor{Data: data, Height: inputSize, Width: inputSize}
}
