package inference

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dianalab/diana/internal/crypto"
	"github.com/dianalab/diana/internal/entitlement"
	"github.com/dianalab/diana/internal/gate"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/mlrt"
	"github.com/dianalab/diana/internal/modelstore"
	"github.com/dianalab/diana/internal/quota"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/internal/vision"
	"github.com/dianalab/diana/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "engine-test-secret"

// packBiasModel builds model bytes over a 3×8×8 input whose output is
// fixed by the bias vector.
func packBiasModel(t *testing.T, bias []float32) []byte {
	t.Helper()
	const size = 8

	weights := make([][]float32, len(bias))
	for i := range weights {
		weights[i] = make([]float32, 3*size*size)
	}

	var buf bytes.Buffer
	require.NoError(t, mlrt.Pack(&buf, 3, size, size, weights, bias))
	return buf.Bytes()
}

// writeEncryptedModel seals model bytes under the test secret and writes
// the artifact to dir.
func writeEncryptedModel(t *testing.T, dir string, plain []byte) string {
	t.Helper()

	cipher, err := crypto.NewCipher([]byte(testSecret))
	require.NoError(t, err)
	blob, err := cipher.Encrypt(plain)
	require.NoError(t, err)

	path := filepath.Join(dir, "model.dmr.enc")
	require.NoError(t, os.WriteFile(path, blob, 0o600))
	return path
}

func writeScanImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

type engineFixture struct {
	engine *Engine
	ledger *quota.Ledger
}

// newFixture wires a full engine over a temp directory. gateBias selects
// the gate model's fixed class; nil leaves the gate model absent so the
// gate degrades open.
func newFixture(t *testing.T, modelBias []float32, gateBias []float32, freeLimit uint64) engineFixture {
	t.Helper()
	dir := t.TempDir()

	encryptedPath := filepath.Join(dir, "absent.dmr.enc")
	if modelBias != nil {
		encryptedPath = writeEncryptedModel(t, dir, packBiasModel(t, modelBias))
	}

	gatePath := filepath.Join(dir, "gate.dmr")
	if gateBias != nil {
		require.NoError(t, os.WriteFile(gatePath, packBiasModel(t, gateBias), 0o600))
	}

	cipher, err := crypto.NewCipher([]byte(testSecret))
	require.NoError(t, err)
	guard := entitlement.NewGuard(modelstore.NewStore(cipher, logger.Nop()), encryptedPath, logger.Nop())

	storage, err := store.NewFileQuotaStorage(filepath.Join(dir, "quota.json"))
	require.NoError(t, err)
	ledger := quota.NewLedger(storage, freeLimit, logger.Nop())

	filter := gate.NewFilter(gatePath, logger.Nop())

	return engineFixture{
		engine: NewEngine(filter, guard, ledger, nil, logger.Nop()),
		ledger: ledger,
	}
}

func usedCount(t *testing.T, ledger *quota.Ledger) uint64 {
	t.Helper()
	stats, err := ledger.Stats()
	require.NoError(t, err)
	return stats.Used
}

func TestPredict_FullPipeline(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 100)

	result, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	require.NoError(t, err)

	assert.Equal(t, "Malignant", result.Label)
	assert.Equal(t, 1, result.ClassID)
	assert.Greater(t, result.Confidence, 0.9)
	assert.Equal(t, models.RiskHigh, result.Risk)
	assert.Len(t, result.Probabilities, 3)

	require.NotNil(t, result.Filter)
	assert.True(t, result.Filter.Accepted)
	assert.False(t, result.Filter.State.Active, "no gate model was provided")

	assert.Equal(t, uint64(1), usedCount(t, fix.ledger), "exactly one debit per analysis")
}

func TestPredict_BinarySchemaLabels(t *testing.T) {
	fix := newFixture(t, []float32{5, 0}, nil, 100)

	result, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	require.NoError(t, err)

	assert.Equal(t, "Benign", result.Label)
	assert.Contains(t, result.Probabilities, "Benign")
	assert.Contains(t, result.Probabilities, "Malignant")
	assert.Equal(t, models.RiskLow, result.Risk)
}

func TestPredict_GenericSchemaStillBucketsRisk(t *testing.T) {
	// Four classes get generic labels, but class 1 still drives the risk
	// bucket: its probability here is near zero, so risk is Low.
	fix := newFixture(t, []float32{0, 0, 0, 5}, nil, 100)

	result, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	require.NoError(t, err)

	assert.Equal(t, "Class 3", result.Label)
	assert.Equal(t, models.RiskLow, result.Risk)
}

func TestPredict_SingleClassCarriesNoRisk(t *testing.T) {
	fix := newFixture(t, []float32{5}, nil, 100)

	result, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	require.NoError(t, err)

	assert.Equal(t, "Class 0", result.Label)
	assert.Empty(t, result.Risk)
}

func TestPredict_GateRejectionCostsNothing(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, []float32{5, 0, 0}, 100)

	_, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)

	var rejection *GateRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, models.CategoryNonMedical, rejection.Verdict.Category)
	assert.Equal(t, gate.ReasonNonMedical, rejection.Verdict.Reason)

	assert.Equal(t, uint64(0), usedCount(t, fix.ledger), "rejected requests are never debited")
}

func TestPredict_DeniedWithoutQuotaOrPremium(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 0)

	_, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.Equal(t, uint64(0), usedCount(t, fix.ledger))
}

func TestPredict_WarmSessionStillDeniedAfterExhaustion(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 1)
	scan := writeScanImage(t)

	// First request consumes the last free analysis and memoizes the
	// session.
	result, err := fix.engine.Predict(context.Background(), scan, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, fix.engine.ModelLoaded())
	assert.Equal(t, uint64(1), usedCount(t, fix.ledger))

	// The warm session must not bypass the per-request entitlement check.
	_, err = fix.engine.Predict(context.Background(), scan, false)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.Equal(t, uint64(1), usedCount(t, fix.ledger), "denied requests are never debited")

	// Premium still gets through on the same warm session.
	result, err = fix.engine.Predict(context.Background(), scan, true)
	require.NoError(t, err)
	assert.Equal(t, "Malignant", result.Label)
}

func TestPredict_AccountPremiumOverridesExhaustedQuota(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 0)

	result, err := fix.engine.Predict(context.Background(), writeScanImage(t), true)
	require.NoError(t, err)
	assert.Equal(t, "Malignant", result.Label)
}

func TestPredict_StoredPremiumCountsUsage(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 0)
	require.NoError(t, fix.ledger.SetPremium(true))

	_, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), usedCount(t, fix.ledger), "premium analyses still count usage")
}

func TestPredict_MissingArtifact(t *testing.T) {
	fix := newFixture(t, nil, nil, 100)

	_, err := fix.engine.Predict(context.Background(), writeScanImage(t), false)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, uint64(0), usedCount(t, fix.ledger))
}

func TestPredict_TamperedArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeEncryptedModel(t, dir, packBiasModel(t, []float32{0, 5, 0}))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	blob[len(blob)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	cipher, err := crypto.NewCipher([]byte(testSecret))
	require.NoError(t, err)
	guard := entitlement.NewGuard(modelstore.NewStore(cipher, logger.Nop()), path, logger.Nop())

	storage, err := store.NewFileQuotaStorage(filepath.Join(dir, "quota.json"))
	require.NoError(t, err)
	ledger := quota.NewLedger(storage, 100, logger.Nop())

	engine := NewEngine(gate.NewFilter(filepath.Join(dir, "gate.dmr"), logger.Nop()), guard, ledger, nil, logger.Nop())

	_, err = engine.Predict(context.Background(), writeScanImage(t), false)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.ErrorIs(t, err, crypto.ErrIntegrity)
}

func TestPredict_SessionMemoized(t *testing.T) {
	dir := t.TempDir()
	path := writeEncryptedModel(t, dir, packBiasModel(t, []float32{0, 5, 0}))

	cipher, err := crypto.NewCipher([]byte(testSecret))
	require.NoError(t, err)
	guard := entitlement.NewGuard(modelstore.NewStore(cipher, logger.Nop()), path, logger.Nop())

	storage, err := store.NewFileQuotaStorage(filepath.Join(dir, "quota.json"))
	require.NoError(t, err)
	ledger := quota.NewLedger(storage, 100, logger.Nop())

	engine := NewEngine(gate.NewFilter(filepath.Join(dir, "gate.dmr"), logger.Nop()), guard, ledger, nil, logger.Nop())

	scan := writeScanImage(t)
	_, err = engine.Predict(context.Background(), scan, false)
	require.NoError(t, err)
	assert.True(t, engine.ModelLoaded())

	// Removing the artifact must not affect subsequent requests: the
	// decrypted session lives in memory.
	require.NoError(t, os.Remove(path))

	_, err = engine.Predict(context.Background(), scan, false)
	assert.NoError(t, err)
}

func TestLoadModel_ForceDiscardsSession(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 100)

	require.NoError(t, fix.engine.LoadModel(false, false))
	assert.True(t, fix.engine.ModelLoaded())

	require.NoError(t, fix.engine.LoadModel(false, true))
	assert.True(t, fix.engine.ModelLoaded(), "force reload materializes a fresh session")
}

func TestPredict_UnsupportedImage(t *testing.T) {
	fix := newFixture(t, []float32{0, 5, 0}, nil, 100)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	_, err := fix.engine.Predict(context.Background(), path, false)
	assert.ErrorIs(t, err, vision.ErrUnsupportedFormat)
	assert.Equal(t, uint64(0), usedCount(t, fix.ledger))
}

func TestRiskFor_Buckets(t *testing.T) {
	assert.Equal(t, models.RiskLow, riskFor(0.0))
	assert.Equal(t, models.RiskLow, riskFor(0.2999))
	assert.Equal(t, models.RiskModerate, riskFor(0.30))
	assert.Equal(t, models.RiskModerate, riskFor(0.6999))
	assert.Equal(t, models.RiskHigh, riskFor(0.70))
	assert.Equal(t, models.RiskHigh, riskFor(1.0))
}
