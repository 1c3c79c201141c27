package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/config"
	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// OllamaClient asks a local language model which candidate should take a
// problem. Every failure degrades to "no suggestion".
type OllamaClient struct {
	url     string
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

// NewOllamaClient returns nil when advisory routing is disabled.
func NewOllamaClient(cfg config.AdvisoryConfig, logger *zap.Logger) *OllamaClient {
	if !cfg.Enabled || strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaClient{
		url:     cfg.URL,
		model:   cfg.Model,
		timeout: cfg.Timeout(),
		logger:  logger,
	}
}

// Suggest returns the id of the first candidate whose name appears in the model's answer.
func (c *OllamaClient) Suggest(ctx context.Context, problem string, candidates []domain.Technician, load map[string]int) (string, bool) {
	if c == nil || len(candidates) == 0 {
		return "", false
	}
	if err := ctx.Err(); err != nil {
		return "", false
	}

	agent := fiber.Post(c.url).
		JSON(generateRequest{
			Model:   c.model,
			Prompt:  buildPrompt(problem, candidates, load),
			Options: generateOptions{Temperature: 0},
		}).
		Timeout(c.timeout)
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		c.logger.Warn("advisory request failed", zap.String("url", c.url), zap.Error(errs[0]))
		return "", false
	}
	if status < 200 || status >= 300 {
		c.logger.Warn("advisory responded with error", zap.Int("status", status))
		return "", false
	}

	answer := gjson.GetBytes(body, "response")
	if !answer.Exists() || answer.Type != gjson.String {
		c.logger.Warn("advisory response missing answer")
		return "", false
	}
	text := strings.ToLower(strings.TrimSpace(answer.String()))
	for _, candidate := range candidates {
		name := strings.ToLower(strings.TrimSpace(candidate.Name))
		if name != "" && strings.Contains(text, name) {
			c.logger.Debug("advisory suggestion", zap.String("technician", candidate.Name))
			return candidate.ID, true
		}
	}
	c.logger.Info("advisory answer named no candidate", zap.String("answer", answer.String()))
	return "", false
}

func buildPrompt(problem string, candidates []domain.Technician, load map[string]int) string {
	var b strings.Builder
	b.WriteString("Choose the most suitable technician based on workload and specialty.\n\nAvailable technicians:\n")
	for _, t := range candidates {
		fmt.Fprintf(&b, "%s (%s) - %d open tickets\n", t.Name, t.Specialty, load[t.ID])
	}
	fmt.Fprintf(&b, "\nProblem: %s\n\nAnswer only with the name of the best technician.\n", strings.TrimSpace(problem))
	return b.String()
}
