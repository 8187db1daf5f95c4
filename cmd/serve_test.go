package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/redflag-cli/internal/crawl"
	"github.com/sells-group/redflag-cli/internal/model"
)

func okCrawler() *fakeCrawler {
	return &fakeCrawler{fn: func(_ context.Context, _ string, _ int) (*crawl.Result, error) {
		return sampleResult("1234567"), nil
	}}
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(serverDeps{Crawler: okCrawler()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_RequestIDsDiffer(t *testing.T) {
	h := buildRouter(serverDeps{Crawler: okCrawler()})

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		ids[rr.Header().Get("X-Request-ID")] = true
	}
	assert.Len(t, ids, 3)
}

func TestReviews_Success(t *testing.T) {
	var gotMax int
	c := &fakeCrawler{fn: func(_ context.Context, _ string, max int) (*crawl.Result, error) {
		gotMax = max
		return sampleResult("1234567"), nil
	}}
	h := buildRouter(serverDeps{Crawler: c})

	rr := post(t, h, "/v1/reviews", reviewsRequest{URL: "https://naver.me/abc", Max: 20})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 20, gotMax)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "1234567", body["place_id"])
	assert.Len(t, body["reviews"], 2)
	assert.NotContains(t, body, "flags")
}

func TestReviews_BadRequests(t *testing.T) {
	h := buildRouter(serverDeps{Crawler: okCrawler()})

	tests := []struct {
		name string
		body any
		want string
	}{
		{"invalid json", "{not json", "invalid request body"},
		{"missing url", map[string]any{"max": 5}, "url is required"},
		{"negative max", map[string]any{"url": "https://naver.me/abc", "max": -1}, "max must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, h, "/v1/reviews", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
}

func TestReviews_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &model.NotFoundError{URL: "u"}, http.StatusNotFound},
		{"blocked", &model.BlockedError{URL: "u", Marker: "m"}, http.StatusLocked},
		{"network", &model.NetworkError{URL: "u", Err: errors.New("dial")}, http.StatusBadGateway},
		{"session", &model.SessionError{Op: "launch", Err: errors.New("no chrome")}, http.StatusInternalServerError},
		{"deadline", fmt.Errorf("crawl: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCrawler{fn: func(_ context.Context, _ string, _ int) (*crawl.Result, error) {
				return nil, tt.err
			}}
			rr := post(t, buildRouter(serverDeps{Crawler: c}), "/v1/reviews", reviewsRequest{URL: "u"})
			assert.Equal(t, tt.want, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestAnalyze_Disabled(t *testing.T) {
	rr := post(t, buildRouter(serverDeps{Crawler: okCrawler()}), "/v1/analyze", reviewsRequest{URL: "u"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "analysis is not configured")
}

func TestAnalyze_Success(t *testing.T) {
	a := &fakeFlagger{flags: []model.Flag{{
		Category: "위생", RiskLevel: model.RiskHigh, Summary: "벌레 발견", Frequency: 1, EvidenceIDs: []int{1},
	}}}
	h := buildRouter(serverDeps{Crawler: okCrawler(), Analyzer: a})

	rr := post(t, h, "/v1/analyze", reviewsRequest{URL: "u"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, a.callCount())

	var body struct {
		PlaceID string         `json:"place_id"`
		Reviews []model.Review `json:"reviews"`
		Flags   []model.Flag   `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "1234567", body.PlaceID)
	assert.Len(t, body.Reviews, 2)
	require.Len(t, body.Flags, 1)
	assert.Equal(t, []int{1}, body.Flags[0].EvidenceIDs)
}

func TestAnalyze_FailureReturnsMarker(t *testing.T) {
	a := &fakeFlagger{err: errors.New("analysis parse response: bad json")}
	h := buildRouter(serverDeps{Crawler: okCrawler(), Analyzer: a})

	rr := post(t, h, "/v1/analyze", reviewsRequest{URL: "u"})
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Reviews []model.Review      `json:"reviews"`
		Flags   []map[string]string `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Reviews, 2)
	require.Len(t, body.Flags, 1)
	assert.Equal(t, "analysis parse response: bad json", body.Flags[0]["error"])
}

func TestAnalyze_CrawlErrorSkipsAnalysis(t *testing.T) {
	c := &fakeCrawler{fn: func(_ context.Context, rawURL string, _ int) (*crawl.Result, error) {
		return nil, &model.NotFoundError{URL: rawURL}
	}}
	a := &fakeFlagger{}
	rr := post(t, buildRouter(serverDeps{Crawler: c, Analyzer: a}), "/v1/analyze", reviewsRequest{URL: "u"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Zero(t, a.callCount())
}

func TestReviews_ConcurrencyBound(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := &fakeCrawler{fn: func(_ context.Context, _ string, _ int) (*crawl.Result, error) {
		close(started)
		<-release
		return sampleResult("1"), nil
	}}
	h := buildRouter(serverDeps{Crawler: c, MaxConcurrent: 1, Timeout: 50 * time.Millisecond})

	first := make(chan int, 1)
	go func() {
		first <- post(t, h, "/v1/reviews", reviewsRequest{URL: "a"}).Code
	}()
	<-started

	rr := post(t, h, "/v1/reviews", reviewsRequest{URL: "b"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "server busy")

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	h := buildRouter(serverDeps{Crawler: okCrawler()})

	req := httptest.NewRequest(http.MethodOptions, "/v1/reviews", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusLocked, statusFor(fmt.Errorf("wrapped: %w", &model.BlockedError{})))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
