package analysis

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
)

// Input describes the uploaded report from the provider's point of view. The
// raw PDF bytes never leave the upload workflow; providers work from metadata.
type Input struct {
	FileName        string
	FileSizeBytes   int64
	ContentHash     string
	PropertyAddress string
}

// Provider produces a battlecard for an uploaded inspection report.
type Provider interface {
	AnalyzeReport(ctx context.Context, input Input) (*Battlecard, error)
}

// Service wraps a provider with the guarantee the upload workflow relies on:
// Generate always returns a usable battlecard. Provider failures degrade to
// the deterministic fallback card instead of surfacing an error.
type Service struct {
	provider Provider
	logg     *logger.Logger
}

// NewService builds the analysis service. A nil provider is allowed and means
// every card comes from the fallback generator.
func NewService(provider Provider, logg *logger.Logger) (*Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{provider: provider, logg: logg}, nil
}

// Generate returns the provider's battlecard, or the fallback card when the
// provider is absent or fails.
func (s *Service) Generate(ctx context.Context, input Input) *Battlecard {
	if s.provider == nil {
		return FallbackBattlecard(input)
	}

	card, err := s.provider.AnalyzeReport(ctx, input)
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"file_name":    input.FileName,
			"content_hash": input.ContentHash,
		})
		s.logg.Error(logCtx, "battlecard provider failed, using fallback", err)
		return FallbackBattlecard(input)
	}
	if card == nil {
		return FallbackBattlecard(input)
	}
	return card
}
