package gate

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/mlrt"
	"github.com/dianalab/diana/internal/vision"
	"github.com/dianalab/diana/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGateModel packs a 3-class model over an 8×8 input whose output is
// fixed by the bias vector (weights are zero), so any image yields the
// same verdict.
func writeGateModel(t *testing.T, bias []float32) string {
	t.Helper()
	const size = 8

	weights := make([][]float32, 3)
	for i := range weights {
		weights[i] = make([]float32, 3*size*size)
	}

	var buf bytes.Buffer
	require.NoError(t, mlrt.Pack(&buf, 3, size, size, weights, bias))

	path := filepath.Join(t.TempDir(), "filter.dmr")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestClassify_NonMedicalRejected(t *testing.T) {
	modelPath := writeGateModel(t, []float32{5, 0, 0})
	filter := NewFilter(modelPath, logger.Nop())

	verdict, err := filter.Classify(writeTestImage(t))
	require.NoError(t, err)

	assert.False(t, verdict.Accepted)
	assert.Equal(t, models.CategoryNonMedical, verdict.Category)
	assert.Equal(t, ReasonNonMedical, verdict.Reason)
	assert.True(t, verdict.State.Active)
}

func TestClassify_BreastCancerAccepted(t *testing.T) {
	modelPath := writeGateModel(t, []float32{0, 0, 5})
	filter := NewFilter(modelPath, logger.Nop())

	verdict, err := filter.Classify(writeTestImage(t))
	require.NoError(t, err)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, models.CategoryBreastCancer, verdict.Category)
	assert.Equal(t, ReasonAccepted, verdict.Reason)
	assert.InDelta(t, 1.0, sumProbs(verdict.Probabilities), 1e-9)
}

func TestClassify_ConfidentMedicalOtherAccepted(t *testing.T) {
	// Bias strongly toward medical_other: confidence well above 0.30.
	modelPath := writeGateModel(t, []float32{0, 5, 0})
	filter := NewFilter(modelPath, logger.Nop())

	verdict, err := filter.Classify(writeTestImage(t))
	require.NoError(t, err)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, models.CategoryMedicalOther, verdict.Category)
	assert.Equal(t, ReasonMedicalOther, verdict.Reason)
}

func TestDecide_MedicalOtherThresholdBoundary(t *testing.T) {
	assert.False(t, decide(models.CategoryMedicalOther, 0.30), "exactly 0.30 is rejected")
	assert.True(t, decide(models.CategoryMedicalOther, 0.3000001), "just above 0.30 is accepted")
	assert.False(t, decide(models.CategoryNonMedical, 0.99), "non-medical never passes")
	assert.True(t, decide(models.CategoryBreastCancer, 0.01), "target domain always passes")
}

func TestClassify_MissingModelDegradesOpen(t *testing.T) {
	filter := NewFilter(filepath.Join(t.TempDir(), "absent.dmr"), logger.Nop())

	state := filter.State()
	assert.False(t, state.Active)
	assert.NotEmpty(t, state.Reason)

	verdict, err := filter.Classify(writeTestImage(t))
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, models.CategoryUnknown, verdict.Category)
	assert.Equal(t, ReasonDisabled, verdict.Reason)
	assert.False(t, verdict.State.Active)
}

func TestClassify_CorruptModelDegradesOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.dmr")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	filter := NewFilter(path, logger.Nop())

	verdict, err := filter.Classify(writeTestImage(t))
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.False(t, verdict.State.Active)
}

func TestClassify_PreprocessErrorSurfaced(t *testing.T) {
	modelPath := writeGateModel(t, []float32{0, 0, 5})
	filter := NewFilter(modelPath, logger.Nop())

	broken := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))

	_, err := filter.Classify(broken)
	assert.ErrorIs(t, err, vision.ErrDecode)
}

func TestReload_PicksUpNewModel(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "filter.dmr")
	filter := NewFilter(modelPath, logger.Nop())

	assert.False(t, filter.State().Active, "no model yet")

	weights := make([][]float32, 3)
	for i := range weights {
		weights[i] = make([]float32, 3*8*8)
	}
	var buf bytes.Buffer
	require.NoError(t, mlrt.Pack(&buf, 3, 8, 8, weights, []float32{0, 0, 5}))
	require.NoError(t, os.WriteFile(modelPath, buf.Bytes(), 0o600))

	state := filter.Reload()
	assert.True(t, state.Active)
}

func sumProbs(probs map[models.GateCategory]float64) float64 {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	return sum
}
