package classify

import (
	"strings"

	"github.com/sells-group/redflag-cli/internal/model"
)

// Outcome is what the Deduper did with a candidate.
type Outcome int

const (
	// Accepted means the candidate became a new review.
	Accepted Outcome = iota
	// Merged means the candidate replaced the content of a shorter review it contains.
	Merged
	// Fragment means the candidate is part of an existing review and was dropped.
	Fragment
	// Aggregate means the candidate spans several existing reviews and was dropped.
	Aggregate
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Merged:
		return "merged"
	case Fragment:
		return "fragment"
	case Aggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Deduper keeps accepted reviews free of containment: no stored content is a
// substring of another. IDs are assigned 1..N on acceptance and never change.
type Deduper struct {
	reviews []model.Review
}

// Offer compares text against every stored review and returns what happened
// plus the id of the review accepted or merged into (0 when dropped).
// A candidate containing two or more stored reviews is dropped as Aggregate,
// not merged.
func (d *Deduper) Offer(text string) (Outcome, int) {
	for _, r := range d.reviews {
		if strings.Contains(r.Content, text) {
			return Fragment, 0
		}
	}

	target := -1
	for i, r := range d.reviews {
		if !strings.Contains(text, r.Content) {
			continue
		}
		if target >= 0 {
			return Aggregate, 0
		}
		target = i
	}
	if target >= 0 {
		d.reviews[target].Content = text
		return Merged, d.reviews[target].ID
	}

	id := len(d.reviews) + 1
	d.reviews = append(d.reviews, model.Review{ID: id, Content: text})
	return Accepted, id
}

// Len returns the number of accepted reviews.
func (d *Deduper) Len() int { return len(d.reviews) }

// Reviews returns a copy of the accepted reviews ordered by id. It is never nil.
func (d *Deduper) Reviews() []model.Review {
	out := make([]model.Review, len(d.reviews))
	copy(out, d.reviews)
	return out
}
