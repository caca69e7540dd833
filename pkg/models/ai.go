// Package models contains shared data models used across the mealtrack codebase.
package models

import (
	"context"
	"time"
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; inject this interface.
type AIProvider interface {
	// Complete sends a single prompt (optionally with an image) and returns the raw text reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
	// Model returns the model the provider is configured to call.
	Model() string
	// Cloud reports whether requests leave the device and therefore need user consent.
	Cloud() bool
}

// CompletionRequest is the provider-neutral input to a single inference round trip.
type CompletionRequest struct {
	System string
	Prompt string
	Image  *Image
}

// Image is decoded media attached to a completion request.
type Image struct {
	MimeType string
	Base64   string // standard encoding, no data: prefix
}

// AnalysisSource identifies what kind of input produced an analysis.
type AnalysisSource string

const (
	SourcePhoto AnalysisSource = "photo"
	SourceText  AnalysisSource = "text"
)

// AnalysisInput is the input to one nutrition analysis. Either PhotoDataURI or Text is set.
type AnalysisInput struct {
	PhotoDataURI string
	Description  string
	Text         string
	CloudConsent bool
}

// AnalysisResult is parsed, validated provider output.
type AnalysisResult struct {
	Items      []FoodItem `json:"items"`
	Totals     Totals     `json:"totals"`
	Provenance Provenance `json:"provenance"`
}

// Provenance records which provider and model produced the nutrition estimate.
type Provenance struct {
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Source     AnalysisSource `json:"source"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}
