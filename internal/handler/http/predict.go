package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dianalab/diana/internal/inference"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/vision"
	"github.com/dianalab/diana/models"
)

// rejectionResponse carries the gate verdict back to the caller so the UI
// can show why the image was refused.
type rejectionResponse struct {
	Error  string                `json:"error"`
	Filter *models.FilterVerdict `json:"filter_result"`
}

// predict accepts a multipart upload under the "image" field and runs the
// full analysis pipeline on it.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image upload")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !vision.IsSupportedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported image format: "+ext)
		return
	}

	tmp, err := os.CreateTemp("", "diana-upload-*"+ext)
	if err != nil {
		log.Error().Err(err).Msg("temp file creation failed")
		writeError(w, http.StatusInternalServerError, "upload processing failed")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, file); err != nil {
		tmp.Close()
		log.Error().Err(err).Msg("upload spool failed")
		writeError(w, http.StatusInternalServerError, "upload processing failed")
		return
	}
	tmp.Close()

	result, err := h.engine.Predict(r.Context(), tmp.Name(), h.isPremium())
	if err != nil {
		var rejection *inference.GateRejection
		if errors.As(err, &rejection) {
			writeJSON(w, http.StatusUnprocessableEntity, rejectionResponse{
				Error:  rejection.Verdict.Reason,
				Filter: &rejection.Verdict,
			})
			return
		}

		log.Warn().Err(err).Msg("analysis failed")
		writeError(w, statusFromError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
