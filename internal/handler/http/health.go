package http

import (
	"net/http"

	"github.com/dianalab/diana/models"
)

type healthResponse struct {
	Status      string             `json:"status"`
	Version     string             `json:"version,omitempty"`
	ModelLoaded bool               `json:"model_loaded"`
	GateActive  bool               `json:"gate_active"`
	Update      *models.UpdateInfo `json:"update_available,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Version:     h.version,
		ModelLoaded: h.engine.ModelLoaded(),
		GateActive:  h.gate.State().Active,
	}
	if h.checker != nil {
		resp.Update = h.checker.Available()
	}

	writeJSON(w, http.StatusOK, resp)
}
