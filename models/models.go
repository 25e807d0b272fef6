// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package models defines the domain types shared between the screening
// pipeline packages and the transport layer.
package models

import (
	"fmt"
	"time"
)

// GateCategory is one of the three fixed classes the content gate
// distinguishes, plus "unknown" which is used only while the gate is
// disabled.
type GateCategory string

const (
	CategoryNonMedical   GateCategory = "non_medical"
	CategoryMedicalOther GateCategory = "medical_other"
	CategoryBreastCancer GateCategory = "breast_cancer"
	CategoryUnknown      GateCategory = "unknown"
)

// GateState tells the caller whether image screening actually ran.
// A disabled gate accepts every image, so consumers of a FilterVerdict
// must be able to see that the verdict was not produced by the model.
type GateState struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

// FilterVerdict is the content gate's answer for one image. It is never
// persisted.
type FilterVerdict struct {
	Accepted      bool                     `json:"accepted"`
	Category      GateCategory             `json:"category"`
	Confidence    float64                  `json:"confidence"`
	Probabilities map[GateCategory]float64 `json:"probabilities,omitempty"`
	Reason        string                   `json:"reason"`
	State         GateState                `json:"state"`
}

// RiskLevel is the coarse bucket derived from the malignancy probability.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// ClassSchemaKind tags how the output classes of the primary model map to
// human-readable labels. Resolved once at model-load time from the declared
// output arity, never re-derived per request.
type ClassSchemaKind int

const (
	SchemaBinary  ClassSchemaKind = iota // {Benign, Malignant}
	SchemaTernary                        // {Benign, Malignant, Normal}
	SchemaGeneric                        // {Class 0 .. Class n-1}
)

// ClassSchema carries the resolved label set for a loaded model session.
type ClassSchema struct {
	Kind  ClassSchemaKind
	Names []string
}

// ResolveClassSchema maps an output arity to its label set.
// 2 and 3 classes carry the domain names; anything else gets generic labels.
func ResolveClassSchema(classes int) ClassSchema {
	switch classes {
	case 2:
		return ClassSchema{Kind: SchemaBinary, Names: []string{"Benign", "Malignant"}}
	case 3:
		return ClassSchema{Kind: SchemaTernary, Names: []string{"Benign", "Malignant", "Normal"}}
	default:
		names := make([]string, classes)
		for i := range names {
			names[i] = fmt.Sprintf("Class %d", i)
		}
		return ClassSchema{Kind: SchemaGeneric, Names: names}
	}
}

// PredictionResult is the outcome of one successful inference. It is
// returned to the caller and never persisted by the core.
type PredictionResult struct {
	Label         string             `json:"prediction"`
	ClassID       int                `json:"class_id"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Risk          RiskLevel          `json:"risk_level,omitempty"`
	Filter        *FilterVerdict     `json:"filter_result,omitempty"`
}

// QuotaRecord is the durable freemium counter. The ledger owns the
// persisted copy exclusively; analyses_count never decreases except on an
// explicit admin reset.
type QuotaRecord struct {
	AnalysesCount    uint64     `json:"analyses_count"`
	FirstUseDate     time.Time  `json:"first_use_date"`
	LastAnalysisDate *time.Time `json:"last_analysis_date"`
	IsPremium        bool       `json:"is_premium"`
}

// UnlimitedRemaining is the sentinel QuotaStats.Remaining value reported
// for premium accounts.
const UnlimitedRemaining int64 = -1

// QuotaStats is a read-only snapshot of the ledger.
type QuotaStats struct {
	Used         uint64     `json:"used"`
	Remaining    int64      `json:"remaining"`
	Limit        uint64     `json:"limit"`
	IsPremium    bool       `json:"is_premium"`
	FirstUse     time.Time  `json:"first_use"`
	LastAnalysis *time.Time `json:"last_analysis"`
}

// HistoryEntry is one completed analysis as recorded by the optional
// history store.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Risk       RiskLevel `json:"risk_level"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserProfile mirrors the account fields served by the hosted identity
// backend. The premium flag is the only field the pipeline itself reads.
type UserProfile struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	IsPremium bool   `json:"is_premium"`
}

// Session is the locally persisted sign-in state.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	IsPremium   bool      `json:"is_premium"`
	SavedAt     time.Time `json:"saved_at"`
}

// UpdateInfo describes the newest published release.
type UpdateInfo struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	Notes   string `json:"notes,omitempty"`
}
