package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/griffinshaw/dealbrief-backend/pkg/config"
)

// battlecardSystemPrompt steers the model toward negotiation-ready output.
// The response schema pins the shape; the prompt pins the register.
const battlecardSystemPrompt = `You are a real-estate negotiation analyst working for property investors.
You receive metadata about an uploaded home-inspection report and produce a negotiation battlecard.

Instructions:
- Summarize the property's likely condition in two or three sentences aimed at a buyer preparing an offer.
- severityScore is an integer from 1 (cosmetic findings only) to 10 (structural or safety hazards).
- List the key issues a buyer should raise, each with a severity of low, medium, or high and a realistic USD repair estimate.
- Phrase negotiationPoints as concrete asks the buyer can put in writing: repair credits, price reductions, or contractor remediation before close.
- Base estimates on findings typical for the region and property described; never invent addresses or report contents you were not given.`

var battlecardResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {
			Type:        genai.TypeString,
			Description: "Two to three sentence condition summary for a prospective buyer",
		},
		"severityScore": {
			Type:        genai.TypeInteger,
			Description: "Overall severity from 1 (cosmetic) to 10 (structural or safety hazards)",
		},
		"keyIssues": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {
						Type:        genai.TypeString,
						Description: "Short name of the defect",
					},
					"severity": {
						Type:        genai.TypeString,
						Description: "low, medium, or high",
					},
					"estimatedRepairCost": {
						Type:        genai.TypeNumber,
						Description: "Estimated USD cost to remediate",
					},
				},
				Required: []string{"title", "severity", "estimatedRepairCost"},
			},
			Description: "Defects worth raising during negotiation",
		},
		"negotiationPoints": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeString,
			},
			Description: "Concrete asks the buyer can put in an offer",
		},
	},
	Required: []string{"summary", "severityScore", "keyIssues", "negotiationPoints"},
}

// GeminiProvider generates battlecards through the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
	cfg    config.GeminiConfig
}

// NewGeminiProvider builds a provider with JSON-mode generation configured.
func NewGeminiProvider(ctx context.Context, cfg config.GeminiConfig) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(battlecardSystemPrompt))
	model.GenerationConfig.ResponseMIMEType = "application/json"
	model.GenerationConfig.ResponseSchema = battlecardResponseSchema
	temperature := float32(0.2)
	model.Temperature = &temperature

	return &GeminiProvider{client: client, model: model, cfg: cfg}, nil
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// AnalyzeReport asks the model for a battlecard, retrying transient failures
// with exponential backoff before giving up.
func (p *GeminiProvider) AnalyzeReport(ctx context.Context, input Input) (*Battlecard, error) {
	request := struct {
		FileName        string `json:"fileName"`
		FileSizeBytes   int64  `json:"fileSizeBytes"`
		PropertyAddress string `json:"propertyAddress"`
	}{
		FileName:        input.FileName,
		FileSizeBytes:   input.FileSizeBytes,
		PropertyAddress: input.PropertyAddress,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	raw, err := p.generateWithRetry(ctx, string(payload))
	if err != nil {
		return nil, err
	}
	return decodeBattlecard(raw, p.cfg.Model)
}

func (p *GeminiProvider) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	attempts := p.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
	), uint64(attempts-1))

	var raw string
	operation := func() error {
		resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("gemini api: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("empty model response")
		}
		text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return fmt.Errorf("unexpected response part %T", resp.Candidates[0].Content.Parts[0])
		}
		raw = string(text)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return raw, nil
}

// decodeBattlecard parses model output and normalizes it into a stored card.
func decodeBattlecard(raw, modelName string) (*Battlecard, error) {
	var card Battlecard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return nil, fmt.Errorf("decode battlecard: %w", err)
	}
	if strings.TrimSpace(card.Summary) == "" {
		return nil, fmt.Errorf("battlecard missing summary")
	}
	card.Source = SourceGemini
	card.Model = modelName
	card.GeneratedAt = time.Now().UTC()
	card.normalize()
	return &card, nil
}
