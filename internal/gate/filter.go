// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package gate screens input images for relevance before the expensive and
// entitlement-gated primary model is invoked.
//
// The gate model is optional: when its artifact is missing or unusable the
// gate degrades open and accepts every image, carrying an explicit
// Disabled state in each verdict so callers and logs can always tell
// whether screening actually ran. The application must never become
// unusable solely because the gate model is absent.
package gate

import (
	"fmt"
	"os"
	"sync"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/mlrt"
	"github.com/dianalab/diana/internal/vision"
	"github.com/dianalab/diana/models"
)

// Canonical rejection/acceptance reasons. UIs display these verbatim, so
// the wording is part of the behavioral contract.
const (
	ReasonNonMedical   = "Non-medical image detected. Please upload a medical image (mammography, breast ultrasound, etc.)"
	ReasonMedicalOther = "Medical image detected but not related to breast cancer. Please upload a mammography or breast ultrasound image"
	ReasonAccepted     = "Breast cancer related image detected"
	ReasonDisabled     = "Image screening disabled"
)

// medicalOtherThreshold is the asymmetric acceptance cutoff: medical but
// off-domain images pass only above this confidence (exclusive), while
// clearly non-medical images never pass. Business contract, not a tunable.
const medicalOtherThreshold = 0.30

// categories is the fixed output order of the gate model.
var categories = [3]models.GateCategory{
	models.CategoryNonMedical,
	models.CategoryMedicalOther,
	models.CategoryBreastCancer,
}

const defaultInputSize = 224

// Filter is the content gate. The gate model is loaded lazily on first use
// and memoized; Reload forces a fresh load.
type Filter struct {
	modelPath string
	logger    *logger.Logger

	mu      sync.Mutex
	loaded  bool
	session mlrt.Session
	state   models.GateState
}

// NewFilter constructs a [Filter] reading its model from modelPath.
func NewFilter(modelPath string, logger *logger.Logger) *Filter {
	return &Filter{
		modelPath: modelPath,
		logger:    logger,
	}
}

// State returns whether screening is currently active, loading the model
// first if needed.
func (f *Filter) State() models.GateState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoaded()
	return f.state
}

// Reload drops the memoized session and loads the model again.
func (f *Filter) Reload() models.GateState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	f.session = nil
	f.ensureLoaded()
	return f.state
}

// ensureLoaded loads the gate model once. Any failure disables the gate
// instead of propagating: a missing or unusable gate model degrades open.
// Callers must hold f.mu.
func (f *Filter) ensureLoaded() {
	if f.loaded {
		return
	}
	f.loaded = true

	disable := func(reason string) {
		f.session = nil
		f.state = models.GateState{Active: false, Reason: reason}
		f.logger.Warn().Str("path", f.modelPath).Str("reason", reason).
			Msg("image screening disabled, all images will be accepted")
	}

	data, err := os.ReadFile(f.modelPath)
	if err != nil {
		if os.IsNotExist(err) {
			disable("gate model not found")
		} else {
			disable(fmt.Sprintf("gate model unreadable: %v", err))
		}
		return
	}

	session, err := mlrt.Open(data)
	if err != nil {
		disable(fmt.Sprintf("gate model unusable: %v", err))
		return
	}
	if session.Classes() != len(categories) {
		disable(fmt.Sprintf("gate model declares %d classes, want %d", session.Classes(), len(categories)))
		return
	}

	f.session = session
	f.state = models.GateState{Active: true}
	f.logger.Info().Str("path", f.modelPath).Msg("gate model loaded")
}

// Classify screens one image.
//
// With an active gate it runs the 3-class model and applies the acceptance
// rule; with a disabled gate it accepts unconditionally with
// category=unknown. Preprocessing failures are returned as errors (see
// [vision.ErrDecode], [vision.ErrUnsupportedFormat]) and leave no verdict.
func (f *Filter) Classify(imagePath string) (models.FilterVerdict, error) {
	f.mu.Lock()
	f.ensureLoaded()
	session, state := f.session, f.state
	f.mu.Unlock()

	if !state.Active {
		return models.FilterVerdict{
			Accepted:   true,
			Category:   models.CategoryUnknown,
			Confidence: 1.0,
			Reason:     ReasonDisabled,
			State:      state,
		}, nil
	}

	height, width := defaultInputSize, defaultInputSize
	if _, h, w := session.InputShape(); h > 0 && w > 0 {
		height, width = h, w
	}

	tensor, err := vision.Preprocess(imagePath, height, width)
	if err != nil {
		return models.FilterVerdict{}, err
	}

	logits, err := session.Run(tensor)
	if err != nil {
		return models.FilterVerdict{}, fmt.Errorf("gate forward pass: %w", err)
	}

	probs := vision.Softmax(logits)
	best := vision.ArgMax(probs)
	category := categories[best]
	confidence := probs[best]

	verdict := models.FilterVerdict{
		Accepted:   decide(category, confidence),
		Category:   category,
		Confidence: confidence,
		Probabilities: map[models.GateCategory]float64{
			models.CategoryNonMedical:   probs[0],
			models.CategoryMedicalOther: probs[1],
			models.CategoryBreastCancer: probs[2],
		},
		Reason: reasonFor(category),
		State:  state,
	}

	f.logger.Info().
		Str("category", string(category)).
		Float64("confidence", confidence).
		Bool("accepted", verdict.Accepted).
		Msg("image screened")

	return verdict, nil
}

// decide applies the acceptance rule: target-domain images always pass,
// medical-but-off-domain images pass only strictly above the threshold.
func decide(category models.GateCategory, confidence float64) bool {
	return category == models.CategoryBreastCancer ||
		(category == models.CategoryMedicalOther && confidence > medicalOtherThreshold)
}

func reasonFor(category models.GateCategory) string {
	switch category {
	case models.CategoryNonMedical:
		return ReasonNonMedical
	case models.CategoryMedicalOther:
		return ReasonMedicalOther
	default:
		return ReasonAccepted
	}
}
