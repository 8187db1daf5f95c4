package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/redflag-cli/internal/browser"
)

func testDriver() (*Driver, *noSleep) {
	p, ns := testPacer()
	return NewDriver(p, 10, 2, 5), ns
}

func TestDriver_Budget(t *testing.T) {
	d, _ := testDriver()
	assert.Equal(t, 2, d.Budget(1))
	assert.Equal(t, 2, d.Budget(10))
	assert.Equal(t, 5, d.Budget(11))
	assert.Equal(t, 5, d.Budget(50))
}

func TestDriver_PrepareStepOrder(t *testing.T) {
	page, err := browser.NewSnapshot(reviewPage(reviewTexts...))
	require.NoError(t, err)
	d, _ := testDriver()

	d.Prepare(context.Background(), page, 10)

	assert.Equal(t, []string{"방문자 리뷰", "최신순", "더보기", "내용 더보기", "내용 더보기"}, page.Clicks())
	assert.Zero(t, page.Scrolls(), "load-more link was visible")
}

func TestDriver_ScrollsWhenNoLoadMore(t *testing.T) {
	page, err := browser.NewSnapshot(`<html><body><span>리뷰 목록</span></body></html>`)
	require.NoError(t, err)
	d, ns := testDriver()

	d.Prepare(context.Background(), page, 10)

	assert.Empty(t, page.Clicks())
	// Snapshot height never changes, so the loop stops after one gesture.
	assert.Equal(t, 1, page.Scrolls())
	assert.Equal(t, 1, ns.count())
}

func TestDriver_HiddenControlsSkipped(t *testing.T) {
	page, err := browser.NewSnapshot(`<html><body>
		<a style="display:none">방문자 리뷰</a>
		<span hidden>내용 더보기</span>
		<span>내용 더보기</span>
	</body></html>`)
	require.NoError(t, err)
	d, _ := testDriver()

	d.Prepare(context.Background(), page, 10)

	assert.Equal(t, []string{"내용 더보기"}, page.Clicks())
	assert.Equal(t, 1, page.Scrolls())
}

func TestDriver_LoadMoreBudgetSmallCap(t *testing.T) {
	page := newScriptedPage(t, `<html><body></body></html>`)
	page.metric = growingHeight()
	d, _ := testDriver()

	d.Prepare(context.Background(), page, 10)
	assert.Equal(t, 2, page.Scrolls())
}

func TestDriver_LoadMoreBudgetLargeCap(t *testing.T) {
	page := newScriptedPage(t, `<html><body></body></html>`)
	page.metric = growingHeight()
	d, _ := testDriver()

	d.Prepare(context.Background(), page, 50)
	assert.Equal(t, 5, page.Scrolls())
}

func TestDriver_LoadMoreErrorEndsLoopOnly(t *testing.T) {
	page := newScriptedPage(t, reviewPage(reviewTexts...))
	page.metric = func(context.Context, string) (float64, error) { return 0, errBoom }
	d, _ := testDriver()

	d.Prepare(context.Background(), page, 50)

	assert.Zero(t, page.Scrolls())
	assert.Equal(t, []string{"방문자 리뷰", "최신순", "내용 더보기", "내용 더보기"}, page.Clicks())
}

func TestDriver_FindFailuresSwallowed(t *testing.T) {
	page := newScriptedPage(t, reviewPage(reviewTexts...))
	page.find = func(context.Context, string, string) ([]browser.Node, error) { return nil, errBoom }
	d, _ := testDriver()

	assert.NotPanics(t, func() { d.Prepare(context.Background(), page, 10) })
	assert.Empty(t, page.Clicks())
}
