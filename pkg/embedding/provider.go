package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// Service converts text into vectors for storage in a vector collection.
type Service interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Dependencies supplies the external clients a non-local provider needs.
// Only the field matching the resolved provider need be set.
type Dependencies struct {
	// LangChainEmbedder backs the "langchain:<model>" provider. The
	// caller constructs the underlying llms.Model (OpenAI, Ollama, ...)
	// and wraps it with embeddings.NewEmbedder; this package only
	// consumes the resulting Embedder.
	LangChainEmbedder embeddings.Embedder
	// AnthropicAPIKey backs the "anthropic:<model>" provider.
	AnthropicAPIKey string
	Dimension       int
	Logger          *zap.Logger
}

// Resolve builds a Service from a "provider:model" spec. "local:hash" (or
// an empty spec) selects the dependency-free LocalService; "langchain:"
// and "anthropic:" select the corresponding external-backed services.
func Resolve(spec string, deps Dependencies) (Service, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	provider, model, _ := strings.Cut(spec, ":")
	switch provider {
	case "", "local":
		return NewLocalService(deps.Dimension, deps.Logger), nil
	case "langchain":
		if deps.LangChainEmbedder == nil {
			return nil, apperrors.NewPreconditionError("langchain embedder not configured")
		}
		return &langChainService{embedder: deps.LangChainEmbedder, dimension: deps.Dimension}, nil
	case "anthropic":
		if deps.AnthropicAPIKey == "" {
			return nil, apperrors.NewPreconditionError("anthropic API key not configured")
		}
		if model == "" {
			model = string(anthropic.ModelClaude3_5HaikuLatest)
		}
		client := anthropic.NewClient(option.WithAPIKey(deps.AnthropicAPIKey))
		return &anthropicService{client: client, model: model, dimension: deps.Dimension, logger: deps.Logger}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "unsupported embedding provider: %s", provider)
	}
}

// langChainService adapts a langchaingo embeddings.Embedder (float32
// vectors) to this package's float64 Service contract.
type langChainService struct {
	embedder  embeddings.Embedder
	dimension int
}

func (s *langChainService) Dimension() int { return s.dimension }

func (s *langChainService) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, apperrors.NewBackendError("langchain embedding", err)
	}
	return to64(vec), nil
}

func (s *langChainService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, apperrors.NewBackendError("langchain embedding", err)
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = to64(v)
	}
	return out, nil
}

func to64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// anthropicService derives a deterministic "semantic digest" embedding
// from a Messages-API completion: Anthropic has no embeddings endpoint,
// so this summarizes the text via the model, then hashes the summary
// into a normalized vector through the same construction LocalService
// uses. It costs a real model call per text and is meant for callers who
// want the summarization's semantic compression, not raw nearest-neighbor
// fidelity.
type anthropicService struct {
	client    anthropic.Client
	model     string
	dimension int
	logger    *zap.Logger
}

func (s *anthropicService) Dimension() int {
	if s.dimension <= 0 {
		return defaultDimension
	}
	return s.dimension
}

func (s *anthropicService) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float64, s.Dimension()), nil
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Summarize the key semantic concepts in this text in one dense sentence:\n\n%s", text),
			)),
		},
	})
	if err != nil {
		return nil, apperrors.NewBackendError("anthropic embedding", err)
	}

	var digest strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			digest.WriteString(block.Text)
		}
	}
	if digest.Len() == 0 {
		digest.WriteString(text)
	}

	local := NewLocalService(s.Dimension(), s.logger)
	return local.Embed(ctx, digest.String())
}

func (s *anthropicService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
