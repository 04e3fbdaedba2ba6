// Package models contains shared data models used across the getglow codebase.
package models

import (
	"context"
	"encoding/json"
)

// VisionProvider is the core interface all vision-language integrations must
// implement. Never call a specific provider directly — always inject this
// interface.
type VisionProvider interface {
	// Analyze sends an image plus prompt configuration to the upstream model
	// and returns the parsed wellness report.
	Analyze(ctx context.Context, req InferenceRequest) (*WellnessReport, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}

// InferenceRequest is the input to a vision analysis operation.
type InferenceRequest struct {
	ImageData   []byte
	ContentType string
	Prompt      PromptConfig
}

// PromptConfig carries the prompt parameters for one upstream call.
type PromptConfig struct {
	SystemText      string
	UserText        string
	Temperature     float64
	MaxOutputTokens int
}

// WellnessReport is the structured output of an upstream analysis call.
// Score fields missing from the upstream document default to zero rather
// than failing the parse; Raw preserves the full (repaired) document.
type WellnessReport struct {
	OverallScore     int             `json:"overallScore"`
	SkinScore        int             `json:"skinHealth"`
	EyeScore         int             `json:"eyeClarity"`
	CirculationScore int             `json:"circulation"`
	SymmetryScore    int             `json:"facialSymmetry"`
	Recommendations  json.RawMessage `json:"recommendations,omitempty"`
	Raw              json.RawMessage `json:"-"`
}

// ToScores converts report scores into the persisted form, clamped to [0,100].
func (r *WellnessReport) ToScores() Scores {
	return Scores{
		Overall:     clampScore(r.OverallScore),
		Skin:        clampScore(r.SkinScore),
		Eye:         clampScore(r.EyeScore),
		Circulation: clampScore(r.CirculationScore),
		Symmetry:    clampScore(r.SymmetryScore),
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
