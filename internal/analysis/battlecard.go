package analysis

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Battlecard source labels.
const (
	SourceGemini   = "gemini"
	SourceFallback = "fallback"
)

const (
	minSeverityScore = 1
	maxSeverityScore = 10

	// Negotiation credits are advisory; anything outside this range is noise.
	maxEstimatedCredit = 250000
)

// KeyIssue is one defect a buyer can lean on during negotiation.
type KeyIssue struct {
	Title               string          `json:"title"`
	Severity            string          `json:"severity"`
	EstimatedRepairCost decimal.Decimal `json:"estimatedRepairCost"`
}

// Battlecard is the negotiation brief generated for an uploaded inspection
// report. It is stored verbatim on the report row and returned to the
// uploader; nothing in the credit economy depends on its contents.
type Battlecard struct {
	Summary              string          `json:"summary"`
	SeverityScore        int             `json:"severityScore"`
	KeyIssues            []KeyIssue      `json:"keyIssues"`
	NegotiationPoints    []string        `json:"negotiationPoints"`
	EstimatedRepairTotal decimal.Decimal `json:"estimatedRepairTotal"`
	EstimatedCredit      int             `json:"estimatedCredit"`
	Source               string          `json:"source"`
	Model                string          `json:"model,omitempty"`
	GeneratedAt          time.Time       `json:"generatedAt"`
}

// IssueTags returns the issue titles as lowercased tags for the report row.
func (b *Battlecard) IssueTags() []string {
	tags := make([]string, 0, len(b.KeyIssues))
	for _, issue := range b.KeyIssues {
		tag := strings.ToLower(strings.TrimSpace(issue.Title))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// normalize repairs out-of-range fields in place and recomputes the derived
// totals so downstream consumers never see a malformed card.
func (b *Battlecard) normalize() {
	if b.SeverityScore < minSeverityScore {
		b.SeverityScore = minSeverityScore
	}
	if b.SeverityScore > maxSeverityScore {
		b.SeverityScore = maxSeverityScore
	}
	if b.KeyIssues == nil {
		b.KeyIssues = []KeyIssue{}
	}
	if b.NegotiationPoints == nil {
		b.NegotiationPoints = []string{}
	}

	total := decimal.Zero
	for i := range b.KeyIssues {
		if b.KeyIssues[i].EstimatedRepairCost.IsNegative() {
			b.KeyIssues[i].EstimatedRepairCost = decimal.Zero
		}
		b.KeyIssues[i].Severity = normalizeSeverity(b.KeyIssues[i].Severity)
		total = total.Add(b.KeyIssues[i].EstimatedRepairCost)
	}
	b.EstimatedRepairTotal = total.Round(2)

	credit := int(total.IntPart())
	if credit < 0 {
		credit = 0
	}
	if credit > maxEstimatedCredit {
		credit = maxEstimatedCredit
	}
	b.EstimatedCredit = credit

	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now().UTC()
	}
}

func normalizeSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}
