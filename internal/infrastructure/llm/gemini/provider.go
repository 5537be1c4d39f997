package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/resilience"
)

const queryTaskType = "RETRIEVAL_QUERY"

type Config struct {
	GenerationModel string
	EmbeddingModel  string
	HomepageURL     string
	ContactInfo     string
}

// Provider embeds queries and generates grounded answers with the Gemini
// API. Every call goes through the resilience executor; a quota error on
// the active key rotates the keyring before the retry.
type Provider struct {
	cfg    Config
	keys   *Keyring
	exec   *resilience.Executor
	logger *slog.Logger
}

func NewProvider(cfg Config, keys *Keyring, exec *resilience.Executor, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, keys: keys, exec: exec, logger: logger}
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := p.execute(ctx, "gemini_embed_query", func(ctx context.Context, apiKey string) error {
		client, err := newClient(ctx, apiKey)
		if err != nil {
			return err
		}
		resp, err := client.Models.EmbedContent(
			ctx,
			p.cfg.EmbeddingModel,
			[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
			&genai.EmbedContentConfig{TaskType: queryTaskType},
		)
		if err != nil {
			return fmt.Errorf("gemini embed content: %w", err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return fmt.Errorf("gemini embed content: empty embedding")
		}
		vector = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *Provider) GenerateAnswer(ctx context.Context, question, compiledContext, history string) (string, error) {
	prompt := buildAnswerPrompt(question, compiledContext, history, p.cfg.HomepageURL, p.cfg.ContactInfo)

	var answer string
	err := p.execute(ctx, "gemini_generate_answer", func(ctx context.Context, apiKey string) error {
		client, err := newClient(ctx, apiKey)
		if err != nil {
			return err
		}
		resp, err := client.Models.GenerateContent(
			ctx,
			p.cfg.GenerationModel,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			generationConfig(),
		)
		if err != nil {
			return fmt.Errorf("gemini generate content: %w", err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			// Safety-blocked or empty candidate. The customer still gets a
			// polite reply pointing at the official channels.
			p.logger.Warn("gemini_answer_blocked_or_empty")
			answer = blockedText(p.cfg.HomepageURL, p.cfg.ContactInfo)
			return nil
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// execute runs call under retry and circuit breaking. The active API key is
// resolved per attempt so a rotation between attempts takes effect.
func (p *Provider) execute(ctx context.Context, operation string, call func(context.Context, string) error) error {
	return p.exec.Execute(ctx, operation, func(ctx context.Context) error {
		err := call(ctx, p.keys.Current())
		if err != nil && isQuotaError(err) {
			p.keys.Advance()
			p.logger.Warn("gemini_api_key_rotated", "operation", operation, "keys", p.keys.Len())
			return domain.WrapError(domain.ErrQuotaExhausted, operation, err)
		}
		return err
	}, classifyGeminiError)
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

func generationConfig() *genai.GenerateContentConfig {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.5),
		MaxOutputTokens: 2048,
		SafetySettings:  settings,
	}
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrQuotaExhausted) || isQuotaError(err):
		// Retry on the next key without tripping the breaker.
		return resilience.ErrorClassification{Retryable: true}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
