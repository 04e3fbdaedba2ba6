// Package openai implements models.VisionProvider against the OpenAI
// chat-completions API, in batch or streaming mode.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/varunv-ux/getglow/internal/config"
	"github.com/varunv-ux/getglow/internal/inference"
	"github.com/varunv-ux/getglow/pkg/models"
)

const (
	// maxRetries bounds retries on rate-limit responses; other failures are
	// surfaced immediately and become the job's terminal failure.
	maxRetries  = 2
	baseBackoff = 2 * time.Second
	maxBackoff  = 16 * time.Second
)

// Provider implements models.VisionProvider using OpenAI.
type Provider struct {
	client    openai.Client
	model     string
	streaming bool
}

func NewProvider(cfg config.OpenAIConfig, streaming bool) *Provider {
	return &Provider{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		streaming: streaming,
	}
}

func (p *Provider) Name() string { return "openai" }

// Analyze sends the image and prompt upstream and funnels the response body
// through the shared repair-then-parse path. In streaming mode the partial
// chunks are concatenated into one candidate document first.
func (p *Provider) Analyze(ctx context.Context, req models.InferenceRequest) (*models.WellnessReport, error) {
	params := p.buildParams(req)

	var (
		body string
		err  error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if p.streaming {
			body, err = p.collectStream(ctx, params)
		} else {
			body, err = p.complete(ctx, params)
		}
		if err == nil {
			return inference.ParseReport([]byte(body))
		}
		if !isRateLimit(err) {
			return nil, classify(err)
		}
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", inference.ErrRateLimited, err)
}

func (p *Provider) buildParams(req models.InferenceRequest) openai.ChatCompletionNewParams {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		req.ContentType, base64.StdEncoding.EncodeToString(req.ImageData))

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt.UserText),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Prompt.SystemText),
			openai.UserMessage(parts),
		},
		Temperature: openai.Float(req.Prompt.Temperature),
	}
	if req.Prompt.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Prompt.MaxOutputTokens))
	}
	return params
}

func (p *Provider) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", inference.ErrMalformedResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *Provider) collectStream(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func isRateLimit(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		// insufficient_quota also comes back as 429 but retrying won't help.
		return apiErr.StatusCode == 429 && apiErr.Code != "insufficient_quota"
	}
	return false
}

// classify maps OpenAI API errors onto the inference error taxonomy so the
// job controller can record a distinguishing failure message.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == "insufficient_quota" || apiErr.StatusCode == 402:
			return fmt.Errorf("%w: %v", inference.ErrQuotaExceeded, err)
		case apiErr.StatusCode == 429:
			return fmt.Errorf("%w: %v", inference.ErrRateLimited, err)
		}
	}
	return fmt.Errorf("openai call failed: %w", err)
}

var _ models.VisionProvider = (*Provider)(nil)
