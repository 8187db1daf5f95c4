package analyze

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/redflag-cli/internal/model"
)

// smallSampleSize is the review count below which a single valid complaint
// is reported.
const smallSampleSize = 10

const systemPrompt = `You are a red-flag auditor for Naver Place restaurant and shop listings.
You receive visitor reviews written in Korean and report the defects that could seriously
hurt a prospective customer.

Filtering:
- Ignore plain abuse, insults and complaints without a stated reason.
- Ignore reviews that read like unreasonable customers (ignoring posted store rules,
  excessive demands).
- Taste, mood and other matters of preference are not red flags. Hygiene problems such
  as foreign objects in food are.

Reporting:
- Fewer than 10 reviews in total: report a complaint even if it appears once, as long as
  it is valid.
- 10 or more reviews: report a complaint only when two or more reviews raise the same
  issue. Exception: hygiene (insects, foreign objects, food poisoning) and safety issues
  are reported even when they appear once.

Output:
Respond with a JSON array only, no markdown fences and no prose. Each element:
{"category": "위생" | "서비스" | "품질" | "가격" | "시설" | other short Korean label,
 "risk_level": "High" (hygiene, safety, fraud) or "Medium" (rudeness, misinformation),
 "summary": one Korean sentence describing the issue,
 "frequency": number of reviews mentioning it,
 "evidence_ids": ids of those reviews}
Return [] when there is no red flag.`

// userPrompt renders the review payload.
func userPrompt(reviews []model.Review) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reviews); err != nil {
		return "", eris.Wrap(err, "analyze: encode reviews")
	}

	rule := "10 or more reviews: report repeated complaints, plus any single hygiene or safety issue."
	if len(reviews) < smallSampleSize {
		rule = "fewer than 10 reviews: a single valid complaint is enough to report."
	}

	return fmt.Sprintf("Collected visitor reviews (%d total, %s)\nApply the rules and answer with the JSON array.\n\n%s",
		len(reviews), rule, buf.String()), nil
}
