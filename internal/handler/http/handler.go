// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package http exposes the screening pipeline over HTTP.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/dianalab/diana/internal/account"
	"github.com/dianalab/diana/internal/gate"
	"github.com/dianalab/diana/internal/inference"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/quota"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/internal/update"
)

// Handler carries the wired pipeline components. account, history and
// checker are optional; the corresponding endpoints degrade rather than
// the whole surface.
type Handler struct {
	engine  *inference.Engine
	ledger  *quota.Ledger
	gate    *gate.Filter
	account *account.Client
	history store.HistoryStorage
	checker *update.Checker

	maxUploadBytes int64
	version        string

	logger *logger.Logger
}

// Options groups the optional collaborators and settings.
type Options struct {
	Account        *account.Client
	History        store.HistoryStorage
	Checker        *update.Checker
	MaxUploadBytes int64
	Version        string
}

func NewHandler(engine *inference.Engine, ledger *quota.Ledger, gate *gate.Filter, opts Options, logger *logger.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	logger.Info().Msg("http handler created")
	return &Handler{
		engine:         engine,
		ledger:         ledger,
		gate:           gate,
		account:        opts.Account,
		history:        opts.History,
		checker:        opts.Checker,
		maxUploadBytes: opts.MaxUploadBytes,
		version:        opts.Version,
		logger:         logger,
	}
}

// isPremium reads the cached account flag; a missing account client means
// free tier.
func (h *Handler) isPremium() bool {
	return h.account != nil && h.account.IsPremium()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
