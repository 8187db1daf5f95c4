// Package analyze asks a language model to flag serious, recurring
// complaints in a set of extracted reviews.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/model"
	"github.com/sells-group/redflag-cli/internal/resilience"
	"github.com/sells-group/redflag-cli/pkg/anthropic"
)

// Error reports a failed analysis. The crawl result it was given stays valid.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Marker is the single-element payload reported in place of flags when
// analysis fails.
type Marker struct {
	Error string `json:"error" yaml:"error"`
}

// ErrorMarker renders err as the [{"error": "..."}] payload.
func ErrorMarker(err error) []Marker {
	return []Marker{{Error: err.Error()}}
}

// Analyzer produces red flags from reviews.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	timeout   time.Duration
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Analyzer) { a.retry = cfg }
}

// WithBreaker sets the circuit breaker guarding model calls.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Analyzer) { a.breaker = cb }
}

// WithTimeout bounds one Analyze call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// New creates an Analyzer calling modelID with at most maxTokens of output.
func New(client anthropic.Client, modelID string, maxTokens int, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:    client,
		model:     modelID,
		maxTokens: int64(maxTokens),
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 4096
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	if a.retry.OnRetry == nil {
		a.retry.OnRetry = resilience.RetryLogger("anthropic", "analyze")
	}
	return a
}

// Analyze returns the red flags found in reviews. No reviews means no flags
// and no model call.
func (a *Analyzer) Analyze(ctx context.Context, reviews []model.Review) ([]model.Flag, error) {
	if len(reviews) == 0 {
		return []model.Flag{}, nil
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	prompt, err := userPrompt(reviews)
	if err != nil {
		return nil, &Error{Op: "build prompt", Err: err}
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			resp, err := a.client.CreateMessage(ctx, req)
			if err != nil {
				if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
					return nil, resilience.NewTransientError(err, code)
				}
				return nil, err
			}
			return resp, nil
		})
	})
	if err != nil {
		return nil, &Error{Op: "call model", Err: err}
	}
	resp.Usage.LogCost(a.model, "analyze")

	flags, err := parseFlags(resp.Text(), reviews)
	if err != nil {
		zap.L().Warn("analyze: unparsable model response",
			zap.String("stop_reason", resp.StopReason),
			zap.Int("length", len(resp.Text())),
			zap.Error(err),
		)
		return nil, &Error{Op: "parse response", Err: err}
	}

	zap.L().Info("analyze: complete",
		zap.Int("reviews", len(reviews)),
		zap.Int("flags", len(flags)),
	)
	return flags, nil
}

type rawFlag struct {
	Category    string `json:"category"`
	RiskLevel   string `json:"risk_level"`
	Summary     string `json:"summary"`
	Frequency   int    `json:"frequency"`
	EvidenceIDs []int  `json:"evidence_ids"`
	Error       string `json:"error"`
}

// parseFlags decodes the model's JSON array. Flags with an unknown risk level
// are dropped, as are evidence ids that name no input review.
func parseFlags(text string, reviews []model.Review) ([]model.Flag, error) {
	var raw []rawFlag
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrap(err, "analyze: decode flags")
	}

	known := make(map[int]struct{}, len(reviews))
	for _, r := range reviews {
		known[r.ID] = struct{}{}
	}

	flags := make([]model.Flag, 0, len(raw))
	for _, r := range raw {
		if r.Error != "" {
			return nil, eris.Errorf("analyze: model reported error: %s", r.Error)
		}
		level := normalizeRisk(r.RiskLevel)
		if !level.Valid() {
			zap.L().Debug("analyze: dropping flag with invalid risk level",
				zap.String("category", r.Category),
				zap.String("risk_level", r.RiskLevel),
			)
			continue
		}

		ids := make([]int, 0, len(r.EvidenceIDs))
		seen := make(map[int]struct{}, len(r.EvidenceIDs))
		for _, id := range r.EvidenceIDs {
			if _, ok := known[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}

		freq := r.Frequency
		if freq <= 0 {
			freq = len(ids)
		}

		flags = append(flags, model.Flag{
			Category:    strings.TrimSpace(r.Category),
			RiskLevel:   level,
			Summary:     strings.TrimSpace(r.Summary),
			Frequency:   freq,
			EvidenceIDs: ids,
		})
	}
	return flags, nil
}

func normalizeRisk(s string) model.RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.RiskHigh
	case "medium":
		return model.RiskMedium
	default:
		return model.RiskLevel(s)
	}
}

// cleanJSON extracts a JSON array from text that may be wrapped in markdown
// code fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
