// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package inference orchestrates a single analysis request through its
// fixed stage order: gate check, entitlement check, model load, image
// preprocessing, the forward pass, and finally the quota debit. A request
// either completes every stage or stops at the first failing one; no stage
// is ever skipped or reordered.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dianalab/diana/internal/entitlement"
	"github.com/dianalab/diana/internal/gate"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/mlrt"
	"github.com/dianalab/diana/internal/modelstore"
	"github.com/dianalab/diana/internal/quota"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/internal/vision"
	"github.com/dianalab/diana/models"
)

// Risk bucket cutoffs applied to the malignancy probability.
const (
	riskLowBelow      = 0.30
	riskModerateBelow = 0.70
)

// malignantIndex is the output position risk bucketing reads. Class 1 is
// malignant in the binary and ternary schemas, and by convention in any
// wider model; only single-class models carry no risk.
const malignantIndex = 1

// Engine runs the analysis pipeline. The decrypted model session is
// materialized once on first use and memoized behind a readers-writer
// guard; concurrent predictions share it, and only an explicit Reload
// replaces it.
type Engine struct {
	gate    *gate.Filter
	guard   *entitlement.Guard
	ledger  *quota.Ledger
	history store.HistoryStorage
	logger  *logger.Logger

	mu      sync.RWMutex
	session mlrt.Session
	schema  models.ClassSchema
}

// NewEngine wires the pipeline together. history may be nil, which
// disables analysis history without affecting inference.
func NewEngine(gate *gate.Filter, guard *entitlement.Guard, ledger *quota.Ledger, history store.HistoryStorage, logger *logger.Logger) *Engine {
	return &Engine{
		gate:    gate,
		guard:   guard,
		ledger:  ledger,
		history: history,
		logger:  logger,
	}
}

// ModelLoaded reports whether a decrypted session is currently memoized.
func (e *Engine) ModelLoaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session != nil
}

// LoadModel materializes the model session ahead of the first request.
// With force it discards any memoized session first. Entitlement is
// enforced the same way as during [Engine.Predict].
func (e *Engine) LoadModel(isPremium, force bool) error {
	if force {
		e.mu.Lock()
		e.session = nil
		e.schema = models.ClassSchema{}
		e.mu.Unlock()
	}

	hasQuota, err := e.ledger.CanAnalyze()
	if err != nil {
		return fmt.Errorf("read quota ledger: %w", err)
	}

	_, _, err = e.currentSession(isPremium, hasQuota)
	return err
}

// Predict runs one image through the full pipeline and returns the
// diagnosis. The quota is debited exactly once, and only after a
// successful forward pass; a request failing at any earlier stage costs
// nothing.
//
// Errors: [*GateRejection] when the gate refuses the image,
// [entitlement.ErrDenied] when quota is exhausted and the caller is not
// premium, [ErrModelUnavailable]/[ErrModelLoad] for artifact problems,
// [vision.ErrUnsupportedFormat]/[vision.ErrDecode] for bad input images,
// and [ErrInferenceRuntime] for forward-pass failures.
func (e *Engine) Predict(ctx context.Context, imagePath string, isPremium bool) (*models.PredictionResult, error) {
	verdict, err := e.gate.Classify(imagePath)
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted {
		e.logger.Info().
			Str("category", string(verdict.Category)).
			Msg("request stopped at gate check")
		return nil, &GateRejection{Verdict: verdict}
	}

	hasQuota, err := e.ledger.CanAnalyze()
	if err != nil {
		return nil, fmt.Errorf("read quota ledger: %w", err)
	}

	// Entitlement is a per-request decision: a session memoized while
	// quota remained must not serve callers after it runs out.
	if !entitlement.CanDecrypt(isPremium, hasQuota) {
		e.logger.Warn().
			Bool("is_premium", isPremium).
			Bool("has_quota", hasQuota).
			Msg("request stopped at entitlement check")
		return nil, entitlement.ErrDenied
	}

	session, schema, err := e.currentSession(isPremium, hasQuota)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, height, width := session.InputShape()
	tensor, err := vision.Preprocess(imagePath, height, width)
	if err != nil {
		return nil, err
	}

	logits, err := session.Run(tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceRuntime, err)
	}

	probs := vision.Softmax(logits)
	best := vision.ArgMax(probs)

	result := &models.PredictionResult{
		Label:         schema.Names[best],
		ClassID:       best,
		Confidence:    probs[best],
		Probabilities: make(map[string]float64, len(probs)),
		Filter:        &verdict,
	}
	for i, p := range probs {
		result.Probabilities[schema.Names[i]] = p
	}
	if len(probs) > malignantIndex {
		result.Risk = riskFor(probs[malignantIndex])
	}

	e.debit()
	e.record(ctx, result)

	e.logger.Info().
		Str("prediction", result.Label).
		Float64("confidence", result.Confidence).
		Str("risk", string(result.Risk)).
		Msg("analysis complete")

	return result, nil
}

// currentSession returns the memoized session, materializing it on first
// use. Decryption and parsing run under the write lock so concurrent first
// requests decrypt the artifact once, not once each.
func (e *Engine) currentSession(isPremium, hasQuota bool) (mlrt.Session, models.ClassSchema, error) {
	e.mu.RLock()
	session, schema := e.session, e.schema
	e.mu.RUnlock()
	if session != nil {
		return session, schema, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return e.session, e.schema, nil
	}

	data, err := e.guard.DecryptIfEntitled(isPremium, hasQuota)
	if err != nil {
		switch {
		case errors.Is(err, entitlement.ErrDenied):
			return nil, models.ClassSchema{}, entitlement.ErrDenied
		case errors.Is(err, modelstore.ErrArtifactMissing):
			return nil, models.ClassSchema{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		default:
			return nil, models.ClassSchema{}, fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
	}

	session, err = mlrt.Open(data)
	if err != nil {
		return nil, models.ClassSchema{}, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	e.session = session
	e.schema = models.ResolveClassSchema(session.Classes())
	e.logger.Info().
		Int("classes", session.Classes()).
		Msg("model session materialized")

	return e.session, e.schema, nil
}

// debit charges one analysis after a successful forward pass. The result
// has already been computed at this point, so accounting problems are
// logged rather than turned into a failed diagnosis.
func (e *Engine) debit() {
	debited, err := e.ledger.Increment()
	if err != nil {
		e.logger.Error().Err(err).Msg("quota debit failed")
		return
	}
	if !debited {
		e.logger.Warn().Msg("quota exhausted by a concurrent request, analysis not debited")
	}
}

// record appends the analysis to history, when a history store is wired.
func (e *Engine) record(ctx context.Context, result *models.PredictionResult) {
	if e.history == nil {
		return
	}

	entry := models.HistoryEntry{
		Label:      result.Label,
		Confidence: result.Confidence,
		Risk:       result.Risk,
	}
	if err := e.history.Record(ctx, entry); err != nil {
		e.logger.Error().Err(err).Msg("history record failed")
	}
}

// riskFor buckets the malignancy probability: below 0.30 is Low, below
// 0.70 Moderate, the rest High.
func riskFor(malignant float64) models.RiskLevel {
	switch {
	case malignant < riskLowBelow:
		return models.RiskLow
	case malignant < riskModerateBelow:
		return models.RiskModerate
	default:
		return models.RiskHigh
	}
}
