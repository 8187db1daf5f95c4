package model

// PlaceID is the stable numeric identifier of a business listing.
type PlaceID string

func (p PlaceID) String() string { return string(p) }

// MinReviewLength is the minimum number of characters (runes) a review must have.
const MinReviewLength = 15

// Review is a single accepted customer review.
type Review struct {
	ID      int    `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
}

// RiskLevel grades an analysis finding.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
)

// Valid reports whether r is one of the recognized levels.
func (r RiskLevel) Valid() bool {
	return r == RiskHigh || r == RiskMedium
}

// Flag is a recurring problem found across reviews by the analysis service.
type Flag struct {
	Category    string    `json:"category" yaml:"category"`
	RiskLevel   RiskLevel `json:"risk_level" yaml:"risk_level"`
	Summary     string    `json:"summary" yaml:"summary"`
	Frequency   int       `json:"frequency" yaml:"frequency"`
	EvidenceIDs []int     `json:"evidence_ids" yaml:"evidence_ids"`
}
