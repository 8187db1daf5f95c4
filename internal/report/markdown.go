package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/rotisserie/eris"

	"github.com/sells-group/redflag-cli/internal/analyze"
	"github.com/sells-group/redflag-cli/internal/model"
)

func writeMarkdown(w io.Writer, rs []Report) error {
	md := markdown.NewMarkdown(w)
	md.H1("Red flag report")
	md.PlainText("")

	for i, r := range rs {
		if i > 0 {
			md.HorizontalRule()
			md.PlainText("")
		}
		writeSummary(md, r)
		writeFlags(md, r)
		writeReviews(md, r)
	}

	if err := md.Build(); err != nil {
		return eris.Wrap(err, "report: write markdown")
	}
	return nil
}

func writeSummary(md *markdown.Markdown, r Report) {
	md.H2("Place " + orDash(r.PlaceID.String()))
	md.PlainText("")

	rows := [][]string{
		{"Place ID", orDash(r.PlaceID.String())},
		{"URL", orDash(r.URL)},
		{"Reviews", strconv.Itoa(len(r.Reviews))},
	}
	if flags, ok := r.Flags.([]model.Flag); ok {
		rows = append(rows, []string{"Red flags", strconv.Itoa(len(flags))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeFlags(md *markdown.Markdown, r Report) {
	switch flags := r.Flags.(type) {
	case []analyze.Marker:
		for _, m := range flags {
			md.Cautionf("Analysis failed: %s", m.Error)
		}
		md.PlainText("")
	case []model.Flag:
		md.H3("Red flags")
		md.PlainText("")
		if len(flags) == 0 {
			md.Tip("No red flags found.")
			md.PlainText("")
			return
		}

		high := 0
		rows := make([][]string, len(flags))
		for i, f := range flags {
			if f.RiskLevel == model.RiskHigh {
				high++
			}
			rows[i] = []string{
				cell(f.Category),
				string(f.RiskLevel),
				cell(f.Summary),
				strconv.Itoa(f.Frequency),
				joinIDs(f.EvidenceIDs),
			}
		}
		if high > 0 {
			md.Warningf("%d high risk issue(s) found.", high)
			md.PlainText("")
		}
		md.Table(markdown.TableSet{
			Header: []string{"Category", "Risk", "Summary", "Frequency", "Evidence"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func writeReviews(md *markdown.Markdown, r Report) {
	md.H3("Reviews")
	md.PlainText("")
	if len(r.Reviews) == 0 {
		md.PlainText("No reviews extracted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(r.Reviews))
	for i, rv := range r.Reviews {
		rows[i] = []string{strconv.Itoa(rv.ID), cell(rv.Content)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Content"},
		Rows:   rows,
	})
	md.PlainText("")
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
