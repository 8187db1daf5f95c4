package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/redflag-cli/internal/config"
	"github.com/sells-group/redflag-cli/internal/crawl"
	"github.com/sells-group/redflag-cli/internal/model"
)

const reviewPageHTML = `<html><body>
<a href="#visitor">방문자 리뷰</a>
<a href="#sort">최신순</a>
<ul>
<li><span>사장님이 너무 친절하시고 국물이 진해서 좋았습니다</span><span>내용 더보기</span></li>
<li><span>음식이 조금 늦게 나왔지만 맛은 괜찮았어요 다음에 또 올게요</span><span>내용 더보기</span></li>
</ul>
<a href="#more">더보기</a>
</body></html>`

// testConfig loads the default configuration from an empty directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)
	c.Crawl.Seed = 7
	return c
}

// writeSnapshot saves html to a temp file and returns its path.
func writeSnapshot(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))
	return path
}

// fakeCrawler answers Crawl with fn.
type fakeCrawler struct {
	fn func(ctx context.Context, rawURL string, max int) (*crawl.Result, error)
}

func (f *fakeCrawler) Crawl(ctx context.Context, rawURL string, max int) (*crawl.Result, error) {
	return f.fn(ctx, rawURL, max)
}

func (f *fakeCrawler) CrawlAll(ctx context.Context, urls []string, max int) []crawl.Outcome {
	out := make([]crawl.Outcome, len(urls))
	for i, u := range urls {
		res, err := f.fn(ctx, u, max)
		out[i] = crawl.Outcome{URL: u, Result: res, Err: err}
	}
	return out
}

// fakeFlagger returns fixed flags or a fixed error.
type fakeFlagger struct {
	mu    sync.Mutex
	flags []model.Flag
	err   error
	calls int
	got   []model.Review
}

func (f *fakeFlagger) Analyze(_ context.Context, reviews []model.Review) ([]model.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = reviews
	if f.err != nil {
		return nil, f.err
	}
	return f.flags, nil
}

func (f *fakeFlagger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sampleResult(id model.PlaceID) *crawl.Result {
	return &crawl.Result{
		PlaceID: id,
		URL:     "https://m.place.naver.com/place/" + id.String() + "/review/visitor",
		Reviews: []model.Review{
			{ID: 1, Content: "국물에서 벌레가 나왔습니다 위생 관리가 안 되네요"},
			{ID: 2, Content: "직원분이 친절하고 음식도 맛있었어요"},
		},
	}
}
