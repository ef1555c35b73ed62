// Package analysis produces natural-language analysis of alerts, using a
// language model when one is configured and rule-based text otherwise.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stats"
)

// Options tunes model calls.
type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Assistant answers analysis requests. Its methods never fail: when the model
// is missing or errors, a rule-based answer is returned instead.
type Assistant struct {
	model llms.Model
	opts  Options
}

// New returns an Assistant backed by model. A nil model always uses the
// rule-based answers.
func New(model llms.Model, opts Options) *Assistant {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Assistant{model: model, opts: opts}
}

// NewOpenAIModel returns an OpenAI-compatible chat model.
func NewOpenAIModel(apiKey, model, baseURL string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating LLM: %w", err)
	}
	return llm, nil
}

// Available reports whether a model is configured.
func (a *Assistant) Available() bool {
	return a.model != nil
}

// Analyze explains an alert and suggests remediation.
func (a *Assistant) Analyze(ctx context.Context, alert models.Alert) string {
	out, err := a.run(ctx, analyzeTemplate, map[string]any{"alert": describeAlert(alert)})
	if err != nil {
		if a.Available() {
			slog.Warn("alert analysis failed, using fallback", "alert_id", alert.ID, "error", err)
		}
		return fallbackAnalysis(alert)
	}
	return out
}

// Remediate lists remediation steps for an alert.
func (a *Assistant) Remediate(ctx context.Context, alert models.Alert) string {
	out, err := a.run(ctx, remediationTemplate, map[string]any{"alert": describeAlert(alert)})
	if err != nil {
		if a.Available() {
			slog.Warn("remediation failed, using fallback", "alert_id", alert.ID, "error", err)
		}
		return fallbackRemediation(alert)
	}
	return out
}

// Summarize writes a security summary of the alerts seen between start and end.
func (a *Assistant) Summarize(ctx context.Context, alerts []models.Alert, start, end time.Time) string {
	if len(alerts) == 0 {
		return "No security alerts found in the specified time period."
	}
	s := stats.Aggregate(alerts, end)
	out, err := a.run(ctx, summaryTemplate, map[string]any{"events": describePeriod(s, start, end)})
	if err != nil {
		if a.Available() {
			slog.Warn("security summary failed, using fallback", "alerts", len(alerts), "error", err)
		}
		return fallbackSummary(s, start, end)
	}
	return out
}

var errNoModel = errors.New("no model configured")

func (a *Assistant) run(ctx context.Context, tmpl prompts.PromptTemplate, values map[string]any) (string, error) {
	if a.model == nil {
		return "", errNoModel
	}
	prompt, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("formatting prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	resp, err := a.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, llms.WithMaxTokens(a.opts.MaxTokens), llms.WithTemperature(a.opts.Temperature))
	if err != nil {
		return "", fmt.Errorf("calling LLM: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", errors.New("empty LLM response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
