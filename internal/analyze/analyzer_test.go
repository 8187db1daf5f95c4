package analyze

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/redflag-cli/internal/model"
	"github.com/sells-group/redflag-cli/internal/resilience"
	"github.com/sells-group/redflag-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/redflag-cli/pkg/anthropic/mocks"
)

const testModel = "claude-haiku-4-5-20251001"

func testReviews() []model.Review {
	return []model.Review{
		{ID: 1, Content: "음식에서 머리카락이 나왔는데 사과도 없었어요 <진짜>"},
		{ID: 2, Content: "직원분이 너무 불친절해서 다시는 안 갈 것 같아요"},
		{ID: 3, Content: "국물에서 벌레가 나왔습니다 위생 관리가 전혀 안 되네요"},
	}
}

func noRetryWait() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return cfg
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		Model:      testModel,
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 120, OutputTokens: 40},
	}
}

func TestAnalyze_EmptyInputSkipsCall(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	a := New(client, testModel, 4096)

	flags, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnalyze_ParsesFlags(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	out := "```json\n" + `[
  {"category": "위생", "risk_level": "High", "summary": "음식에서 이물질이 발견됨", "frequency": 2, "evidence_ids": [1, 3]},
  {"category": "서비스", "risk_level": "medium", "summary": "직원 응대가 불친절함", "frequency": 1, "evidence_ids": [2]}
]` + "\n```"
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == testModel && req.MaxTokens == 2048
	})).Return(textResponse(out), nil).Once()

	a := New(client, testModel, 2048, WithRetry(noRetryWait()))
	flags, err := a.Analyze(context.Background(), testReviews())
	require.NoError(t, err)
	require.Len(t, flags, 2)

	assert.Equal(t, "위생", flags[0].Category)
	assert.Equal(t, model.RiskHigh, flags[0].RiskLevel)
	assert.Equal(t, 2, flags[0].Frequency)
	assert.Equal(t, []int{1, 3}, flags[0].EvidenceIDs)
	assert.Equal(t, model.RiskMedium, flags[1].RiskLevel)
}

func TestAnalyze_RequestShape(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	var got anthropic.MessageRequest
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(anthropic.MessageRequest) }).
		Return(textResponse("[]"), nil).Once()

	a := New(client, testModel, 0)
	_, err := a.Analyze(context.Background(), testReviews())
	require.NoError(t, err)

	assert.Equal(t, int64(4096), got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Contains(t, got.System[0].Text, "Fewer than 10 reviews")
	assert.Contains(t, got.System[0].Text, "two or more reviews")
	require.NotNil(t, got.System[0].CacheControl)
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "3 total")
	assert.Contains(t, got.Messages[0].Content, "a single valid complaint")
	// Korean text and angle brackets go through unescaped.
	assert.Contains(t, got.Messages[0].Content, "머리카락이 나왔는데 사과도 없었어요 <진짜>")
	assert.Contains(t, got.Messages[0].Content, `"id": 3`)
}

func TestAnalyze_LargeSampleRule(t *testing.T) {
	reviews := make([]model.Review, 12)
	for i := range reviews {
		reviews[i] = model.Review{ID: i + 1, Content: fmt.Sprintf("리뷰 내용입니다 번호 %d 맛있게 먹었어요", i+1)}
	}
	prompt, err := userPrompt(reviews)
	require.NoError(t, err)
	assert.Contains(t, prompt, "12 total")
	assert.Contains(t, prompt, "report repeated complaints")
}

func TestAnalyze_DropsInvalidRiskAndUnknownEvidence(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	out := `Here you go:
[
  {"category": "가격", "risk_level": "Low", "summary": "가격이 비쌈", "frequency": 1, "evidence_ids": [2]},
  {"category": "위생", "risk_level": "High", "summary": "벌레 발견", "frequency": 0, "evidence_ids": [3, 99, 3]}
]`
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(out), nil).Once()

	a := New(client, testModel, 4096)
	flags, err := a.Analyze(context.Background(), testReviews())
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "위생", flags[0].Category)
	assert.Equal(t, []int{3}, flags[0].EvidenceIDs)
	assert.Equal(t, 1, flags[0].Frequency)
}

func TestAnalyze_NoFlags(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("[]"), nil).Once()

	flags, err := New(client, testModel, 4096).Analyze(context.Background(), testReviews())
	require.NoError(t, err)
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
}

func TestAnalyze_UnparsableResponse(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("죄송합니다, 분석할 수 없습니다."), nil).Once()

	_, err := New(client, testModel, 4096).Analyze(context.Background(), testReviews())
	require.Error(t, err)

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "parse response", aerr.Op)

	marker := ErrorMarker(err)
	require.Len(t, marker, 1)
	assert.Contains(t, marker[0].Error, "parse response")
}

func TestAnalyze_ModelReportedError(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"error": "input too short"}]`), nil).Once()

	_, err := New(client, testModel, 4096).Analyze(context.Background(), testReviews())
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "parse response", aerr.Op)
	assert.Contains(t, err.Error(), "analyze: model reported error: input too short")
}

func TestAnalyze_RetriesTransientErrors(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Twice()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("[]"), nil).Once()

	a := New(client, testModel, 4096, WithRetry(noRetryWait()))
	flags, err := a.Analyze(context.Background(), testReviews())
	require.NoError(t, err)
	assert.Empty(t, flags)
	client.AssertNumberOfCalls(t, "CreateMessage", 3)
}

func TestAnalyze_PermanentErrorNotRetried(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid api key")).Once()

	a := New(client, testModel, 4096, WithRetry(noRetryWait()))
	_, err := a.Analyze(context.Background(), testReviews())

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "call model", aerr.Op)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAnalyze_OpenCircuitSkipsCall(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("boom")).Once()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "anthropic",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	a := New(client, testModel, 4096, WithRetry(noRetryWait()), WithBreaker(cb))

	_, err := a.Analyze(context.Background(), testReviews())
	require.Error(t, err)
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	_, err = a.Analyze(context.Background(), testReviews())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAnalyze_OverloadedThenSuccessOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(529)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"msg_2","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001",`+
			`"content":[{"type":"text","text":"[{\"category\":\"위생\",\"risk_level\":\"High\",\"summary\":\"벌레\",\"frequency\":1,\"evidence_ids\":[3]}]"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":50,"output_tokens":20}}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient("sk-ant-test", option.WithBaseURL(srv.URL))
	a := New(client, testModel, 4096, WithRetry(noRetryWait()))

	flags, err := a.Analyze(context.Background(), testReviews())
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, []int{3}, flags[0].EvidenceIDs)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAnalyze_Timeout(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()

	a := New(client, testModel, 4096, WithRetry(noRetryWait()), WithTimeout(20*time.Millisecond))
	_, err := a.Analyze(context.Background(), testReviews())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced json", "```json\n[]\n```", `[]`},
		{"bare fence", "```\n[1]\n```", `[1]`},
		{"prose around", "결과입니다:\n[1, 2]\n끝", `[1, 2]`},
		{"no array", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestErrorMarker(t *testing.T) {
	m := ErrorMarker(&Error{Op: "call model", Err: errors.New("overloaded")})
	require.Len(t, m, 1)
	assert.True(t, strings.HasPrefix(m[0].Error, "analysis call model"))
}
