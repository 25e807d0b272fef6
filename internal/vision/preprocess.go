// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package vision turns image files into the float32 tensors the model
// runtime consumes, and provides the shared numeric helpers of the
// pipeline.
package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "image/jpeg"
	_ "image/png"
)

// Sentinel errors for per-request preprocessing failures. They never affect
// model or quota state.
var (
	// ErrUnsupportedFormat is returned for file extensions outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDecode is returned when a file with a supported extension cannot
	// be decoded into an image.
	ErrDecode = errors.New("image could not be decoded")
)

// supportedExtensions lists the upload formats accepted by the pipeline.
// .dcm is accepted at the extension gate but has no registered decoder, so
// such files fail later with [ErrDecode].
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".dcm":  {},
	".tiff": {},
	".bmp":  {},
}

// IsSupportedExtension reports whether the file's extension belongs to the
// supported set. Matching is case-insensitive.
func IsSupportedExtension(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Tensor is a single-image activation in channel-first layout with an
// implied batch dimension of one. Data holds Channels*Height*Width values.
type Tensor struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

// Preprocess decodes the image at path and produces the model input tensor:
// forced 3-channel color, bilinear resize to height×width, pixel values
// scaled to [0,1], channel-first layout.
func Preprocess(path string, height, width int) (*Tensor, error) {
	if !IsSupportedExtension(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Force RGB and resize in one pass.
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	tensor := &Tensor{
		Data:     make([]float32, 3*height*width),
		Channels: 3,
		Height:   height,
		Width:    width,
	}

	plane := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := resized.PixOffset(x, y)
			idx := y*width + x
			tensor.Data[idx] = float32(resized.Pix[offset]) / 255.0
			tensor.Data[plane+idx] = float32(resized.Pix[offset+1]) / 255.0
			tensor.Data[2*plane+idx] = float32(resized.Pix[offset+2]) / 255.0
		}
	}

	return tensor, nil
}

// Softmax converts a logit vector into probabilities using the
// numerically-stable form: the maximum logit is subtracted before
// exponentiation.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - max))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

// ArgMax returns the index of the largest probability.
func ArgMax(probs []float64) int {
	best := 0
	for i, v := range probs {
		if v > probs[best] {
			best = i
		}
	}
	return best
}
