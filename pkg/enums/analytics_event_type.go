package enums

import "fmt"

// AnalyticsEventType is the canonical event_type for analytics routing.
type AnalyticsEventType string

const (
	AnalyticsEventUserRegistered   AnalyticsEventType = "user_registered"
	AnalyticsEventReportUploaded   AnalyticsEventType = "report_uploaded"
	AnalyticsEventReportDeleted    AnalyticsEventType = "report_deleted"
	AnalyticsEventReportDownloaded AnalyticsEventType = "report_downloaded"
	AnalyticsEventBountyCreated    AnalyticsEventType = "bounty_created"
	AnalyticsEventBountyFulfilled  AnalyticsEventType = "bounty_fulfilled"
	AnalyticsEventBountyCancelled  AnalyticsEventType = "bounty_cancelled"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventUserRegistered,
	AnalyticsEventReportUploaded,
	AnalyticsEventReportDeleted,
	AnalyticsEventReportDownloaded,
	AnalyticsEventBountyCreated,
	AnalyticsEventBountyFulfilled,
	AnalyticsEventBountyCancelled,
}

// IsValid reports whether the value matches the canonical analytics event_type enum.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts the raw string to AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
