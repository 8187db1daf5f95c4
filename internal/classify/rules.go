// Package classify turns the visible text nodes of a review page into a
// deduplicated, bounded list of reviews.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/redflag-cli/internal/model"
)

// Rule names, in evaluation order.
const (
	RuleMinLength      = "min_length"
	RuleExactDuplicate = "exact_duplicate"
	RuleDenylist       = "denylist"
	RuleBracketTitle   = "bracket_title"
	RuleDatePrefix     = "date_prefix"
	RuleStatCount      = "stat_count"
)

// Rule is a named predicate that rejects non-review text.
type Rule struct {
	Name   string
	Reject func(text string) bool
}

var (
	datePrefixRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d{2}\.\d{2}\.\d{2}`),
		regexp.MustCompile(`^\d{4}년`),
	}
	statCountRes = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,3}(,\d{3})*[회명원개]`),
		regexp.MustCompile(`리뷰 \d+`),
		regexp.MustCompile(`사진 \d+`),
		regexp.MustCompile(`\+\d+`),
	}
)

// MinLength rejects text shorter than n runes.
func MinLength(n int) Rule {
	return Rule{
		Name: RuleMinLength,
		Reject: func(text string) bool {
			return utf8.RuneCountInString(text) < n
		},
	}
}

// ExactDuplicate rejects text already seen by this rule. Each call returns a
// rule with its own memory; text is remembered the first time it is seen.
func ExactDuplicate() Rule {
	seen := make(map[string]struct{})
	return Rule{
		Name: RuleExactDuplicate,
		Reject: func(text string) bool {
			if _, ok := seen[text]; ok {
				return true
			}
			seen[text] = struct{}{}
			return false
		},
	}
}

// Denylist rejects text containing any of the given phrases.
func Denylist(lists ...[]string) Rule {
	var phrases []string
	for _, l := range lists {
		phrases = append(phrases, l...)
	}
	return Rule{
		Name: RuleDenylist,
		Reject: func(text string) bool {
			for _, p := range phrases {
				if strings.Contains(text, p) {
					return true
				}
			}
			return false
		},
	}
}

// BracketTitle rejects "[...]" text, the shape of linked blog post titles.
func BracketTitle() Rule {
	return Rule{
		Name: RuleBracketTitle,
		Reject: func(text string) bool {
			return strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
		},
	}
}

// DatePrefix rejects text starting with "yy.mm.dd" or "yyyy년".
func DatePrefix() Rule {
	return Rule{Name: RuleDatePrefix, Reject: anyMatch(datePrefixRes)}
}

// StatCount rejects counters such as "5,132회", "리뷰 12", "사진 3" or "+4".
func StatCount() Rule {
	return Rule{Name: RuleStatCount, Reject: anyMatch(statCountRes)}
}

func anyMatch(res []*regexp.Regexp) func(string) bool {
	return func(text string) bool {
		for _, re := range res {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
}

// DefaultRules returns a fresh rule chain for one page traversal.
func DefaultRules() []Rule {
	return []Rule{
		MinLength(model.MinReviewLength),
		ExactDuplicate(),
		Denylist(UIChrome, HighlightPhrases, VisitMetadata),
		BracketTitle(),
		DatePrefix(),
		StatCount(),
	}
}

// Normalize composes text to NFC and trims surrounding whitespace, then
// double quotes, then single quotes.
func Normalize(text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	text = strings.Trim(text, `"`)
	return strings.Trim(text, `'`)
}

// Classify returns the name of the first rule rejecting text, or "" if every
// rule lets it through.
func Classify(rules []Rule, text string) string {
	for _, r := range rules {
		if r.Reject(text) {
			return r.Name
		}
	}
	return ""
}
