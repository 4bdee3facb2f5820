package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/lib/pq"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema. Every
// domain event flattens into one row; columns the event does not carry stay
// NULL. CreditDelta is signed from UserID's perspective, so a download row is
// negative for the buyer while the matching bounty payout is positive for the
// fulfiller.
type MarketplaceEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	AggregateType   string             `bigquery:"aggregate_type"`
	AggregateID     string             `bigquery:"aggregate_id"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	UserID          *string            `bigquery:"user_id"`
	CounterpartyID  *string            `bigquery:"counterparty_id"`
	ReportID        *string            `bigquery:"report_id"`
	BountyID        *string            `bigquery:"bounty_id"`
	CreditDelta     *int64             `bigquery:"credit_delta"`
	PropertyAddress *string            `bigquery:"property_address"`
	SeverityScore   *int64             `bigquery:"severity_score"`
	KeyIssueTags    pq.StringArray     `bigquery:"key_issue_tags"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
