// Package report renders crawl and analysis results as JSON, YAML or
// Markdown.
package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/redflag-cli/internal/analyze"
	"github.com/sells-group/redflag-cli/internal/crawl"
	"github.com/sells-group/redflag-cli/internal/model"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, yaml/yml and markdown/md, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// Report is the rendered outcome for one place. Flags holds either
// []model.Flag or the analysis error marker, and is omitted when analysis
// did not run.
type Report struct {
	PlaceID model.PlaceID  `json:"place_id" yaml:"place_id"`
	URL     string         `json:"url,omitempty" yaml:"url,omitempty"`
	Reviews []model.Review `json:"reviews" yaml:"reviews"`
	Flags   any            `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// FromResult builds a Report from a crawl result.
func FromResult(res *crawl.Result) Report {
	r := Report{Reviews: []model.Review{}}
	if res == nil {
		return r
	}
	r.PlaceID = res.PlaceID
	r.URL = res.URL
	if res.Reviews != nil {
		r.Reviews = res.Reviews
	}
	return r
}

// SetFlags records analysis findings.
func (r *Report) SetFlags(flags []model.Flag) {
	if flags == nil {
		flags = []model.Flag{}
	}
	r.Flags = flags
}

// SetAnalysisError records a failed analysis in place of findings.
func (r *Report) SetAnalysisError(err error) {
	r.Flags = analyze.ErrorMarker(err)
}

// Write renders a single report to w.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatMarkdown:
		return writeMarkdown(w, []Report{r})
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// WriteAll renders several reports: a JSON or YAML list, or consecutive
// Markdown sections.
func WriteAll(w io.Writer, format Format, rs []Report) error {
	if rs == nil {
		rs = []Report{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, rs)
	case FormatYAML:
		return writeYAML(w, rs)
	case FormatMarkdown:
		return writeMarkdown(w, rs)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: flush yaml")
	}
	return nil
}
