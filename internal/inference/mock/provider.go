// Package mock provides a configurable VisionProvider for tests and local
// development without upstream credentials.
package mock

import (
	"context"
	"encoding/json"

	"github.com/varunv-ux/getglow/pkg/models"
)

// Provider satisfies models.VisionProvider for testing.
type Provider struct {
	ProviderName string
	AnalyzeFunc  func(ctx context.Context, req models.InferenceRequest) (*models.WellnessReport, error)
}

func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) Analyze(ctx context.Context, req models.InferenceRequest) (*models.WellnessReport, error) {
	if p.AnalyzeFunc != nil {
		return p.AnalyzeFunc(ctx, req)
	}
	return &models.WellnessReport{}, nil
}

// NewProvider returns a Provider with a sensible canned report.
func NewProvider() *Provider {
	return &Provider{
		ProviderName: "mock",
		AnalyzeFunc: func(_ context.Context, _ models.InferenceRequest) (*models.WellnessReport, error) {
			raw := json.RawMessage(`{"overallScore":82,"skinHealth":78,"eyeClarity":80,` +
				`"circulation":75,"facialSymmetry":88,` +
				`"recommendations":["Drink more water","Sleep 8 hours"]}`)
			return &models.WellnessReport{
				OverallScore:     82,
				SkinScore:        78,
				EyeScore:         80,
				CirculationScore: 75,
				SymmetryScore:    88,
				Recommendations:  json.RawMessage(`["Drink more water","Sleep 8 hours"]`),
				Raw:              raw,
			}, nil
		},
	}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		ProviderName: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.InferenceRequest) (*models.WellnessReport, error) {
			return nil, err
		},
	}
}

// NewHangingProvider returns a Provider that blocks until context is cancelled.
func NewHangingProvider() *Provider {
	return &Provider{
		ProviderName: "mock-hanging",
		AnalyzeFunc: func(ctx context.Context, _ models.InferenceRequest) (*models.WellnessReport, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

var _ models.VisionProvider = (*Provider)(nil)
