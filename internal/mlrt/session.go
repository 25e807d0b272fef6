// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package mlrt is the numerical runtime the pipeline loads decrypted model
// bytes into.
//
// Session is deliberately an interface: the engine only needs declared
// input/output shapes and a forward pass, so a heavier backend can replace
// the built-in one without touching the pipeline. The built-in
// implementation executes a dense classifier head (flatten + fully
// connected layer) over the preprocessed input tensor, stored in a compact
// binary format (see Open).
package mlrt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dianalab/diana/internal/vision"
)

// Sentinel errors returned by the runtime. Callers should use [errors.Is]
// to match against these values.
var (
	// ErrBadModel is returned when model bytes cannot be parsed.
	ErrBadModel = errors.New("malformed model data")

	// ErrShapeMismatch is returned when an input tensor does not match the
	// session's declared input shape.
	ErrShapeMismatch = errors.New("input tensor shape mismatch")
)

// Session is a loaded model ready to run forward passes. Implementations
// are safe for concurrent Run calls.
type Session interface {
	// InputShape returns the declared input dimensions (channels, height,
	// width).
	InputShape() (channels, height, width int)

	// Classes returns the declared output arity.
	Classes() int

	// Run executes a forward pass and returns the logit vector for the
	// single batch row.
	Run(input *vision.Tensor) ([]float32, error)
}

// magic identifies the built-in dense model format, version 1.
var magic = [4]byte{'D', 'M', 'R', '1'}

// Header dimensions come from an untrusted file (the gate model is read
// unauthenticated), so they are capped before any allocation: a forged
// header must not overflow the element count or drive a multi-GB make.
const (
	maxDim        = 1 << 14 // per-dimension cap
	maxClasses    = 1 << 12
	maxInputElems = 1 << 24 // channels·height·width
)

// denseSession is the built-in [Session]: one fully connected layer over
// the flattened input. Weights are immutable after Open, so concurrent Run
// calls need no synchronization.
type denseSession struct {
	channels int
	height   int
	width    int
	classes  int

	// weights holds one row of len(channels*height*width) per class.
	weights [][]float32
	bias    []float32
}

// Open parses model bytes in the built-in dense format:
//
//	magic "DMR1"
//	uint32 channels, height, width, classes   (little endian)
//	classes × (channels·height·width) float32 weight rows
//	classes float32 biases
func Open(data []byte) (Session, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadModel)
	}

	var dims [4]uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrBadModel)
	}

	channels, height, width, classes := int(dims[0]), int(dims[1]), int(dims[2]), int(dims[3])
	if channels <= 0 || height <= 0 || width <= 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimension", ErrBadModel)
	}
	if channels > maxDim || height > maxDim || width > maxDim || classes > maxClasses {
		return nil, fmt.Errorf("%w: dimension out of range", ErrBadModel)
	}
	if int64(channels)*int64(height)*int64(width) > maxInputElems {
		return nil, fmt.Errorf("%w: input size %d×%d×%d exceeds budget", ErrBadModel, channels, height, width)
	}

	inputLen := channels * height * width
	s := &denseSession{
		channels: channels,
		height:   height,
		width:    width,
		classes:  classes,
		weights:  make([][]float32, classes),
		bias:     make([]float32, classes),
	}

	for k := 0; k < classes; k++ {
		row := make([]float32, inputLen)
		if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
			return nil, fmt.Errorf("%w: truncated weights", ErrBadModel)
		}
		s.weights[k] = row
	}
	if err := binary.Read(r, binary.LittleEndian, &s.bias); err != nil {
		return nil, fmt.Errorf("%w: truncated bias", ErrBadModel)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadModel, r.Len())
	}

	return s, nil
}

// InputShape implements [Session].
func (s *denseSession) InputShape() (int, int, int) {
	return s.channels, s.height, s.width
}

// Classes implements [Session].
func (s *denseSession) Classes() int {
	return s.classes
}

// Run implements [Session].
func (s *denseSession) Run(input *vision.Tensor) ([]float32, error) {
	if input == nil || len(input.Data) != s.channels*s.height*s.width {
		return nil, fmt.Errorf("%w: want %d×%d×%d", ErrShapeMismatch, s.channels, s.height, s.width)
	}

	logits := make([]float32, s.classes)
	for k := 0; k < s.classes; k++ {
		sum := float64(s.bias[k])
		row := s.weights[k]
		for i, v := range input.Data {
			sum += float64(row[i]) * float64(v)
		}
		logits[k] = float32(sum)
	}

	for _, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("non-finite logit produced")
		}
	}

	return logits, nil
}

// Pack serializes a dense model in the format [Open] reads. Used by the
// offline model tool and by tests.
func Pack(w io.Writer, channels, height, width int, weights [][]float32, bias []float32) error {
	inputLen := channels * height * width
	classes := len(weights)
	if classes == 0 || len(bias) != classes {
		return fmt.Errorf("%w: weights/bias arity mismatch", ErrBadModel)
	}
	for _, row := range weights {
		if len(row) != inputLen {
			return fmt.Errorf("%w: weight row length %d, want %d", ErrBadModel, len(row), inputLen)
		}
	}

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	dims := [4]uint32{uint32(channels), uint32(height), uint32(width), uint32(classes)}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}
	for _, row := range weights {
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, bias)
}
