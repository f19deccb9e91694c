package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/tdhoang/Talaria/config"
	"github.com/tdhoang/Talaria/internal/model"
)

// ErrReviewUnavailable is returned when no API key is configured.
var ErrReviewUnavailable = errors.New("AI review is not configured")

// ReviewService generates a short narrative review for an ingested test
// result. Text generation only; it never scores or alters the stored result.
type ReviewService interface {
	ReviewResult(ctx context.Context, result *model.TestResult) (string, error)
}

type reviewService struct {
	client *genai.GenerativeModel
	cfg    *config.Config
}

func NewReviewService(cfg *config.Config) (ReviewService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. ReviewService will be non-functional.")
		return &reviewService{cfg: cfg, client: nil}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	generativeModel := client.GenerativeModel("gemini-1.5-flash")
	return &reviewService{client: generativeModel, cfg: cfg}, nil
}

func (s *reviewService) ReviewResult(ctx context.Context, result *model.TestResult) (string, error) {
	if s.client == nil {
		return "", ErrReviewUnavailable
	}

	prompt := fmt.Sprintf(
		"You are assisting a psychometric assessment administrator.\n"+
			"Write a short, neutral narrative summary (3-5 sentences) of the following "+
			"submitted answer set. Describe completeness and response patterns only; "+
			"do not score, diagnose, or speculate about the candidate.\n\n"+
			"Session: %s\nAnswers JSON:\n%s\n",
		result.ClientSessionID, result.Answers,
	)

	resp, err := s.client.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	review := strings.TrimSpace(sb.String())
	if review == "" {
		return "", errors.New("gemini returned empty review text")
	}
	return review, nil
}
