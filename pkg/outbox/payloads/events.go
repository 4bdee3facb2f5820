package payloads

import (
	"time"

	"github.com/google/uuid"
)

// UserRegisteredEvent is emitted once per signup, alongside the signup bonus.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"userId"`
	Email        string    `json:"email"`
	SignupBonus  int       `json:"signupBonus"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// ReportUploadedEvent signals a newly registered inspection report. The
// battlecard fields are a snapshot taken at upload time; later re-analysis
// does not re-emit.
type ReportUploadedEvent struct {
	ReportID        uuid.UUID `json:"reportId"`
	OwnerUserID     uuid.UUID `json:"ownerUserId"`
	PropertyAddress string    `json:"propertyAddress"`
	ContentHash     string    `json:"contentHash"`
	UploadReward    int       `json:"uploadReward"`
	SeverityScore   int       `json:"severityScore"`
	KeyIssueTags    []string  `json:"keyIssueTags,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt"`
}

// ReportDeletedEvent is emitted when an owner or admin removes a report.
type ReportDeletedEvent struct {
	ReportID    uuid.UUID `json:"reportId"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	DeletedAt   time.Time `json:"deletedAt"`
	Reason      string    `json:"reason,omitempty"`
}

// ReportDownloadedEvent surfaces a paid download. Repeat downloads by the
// same user are free and do not re-emit.
type ReportDownloadedEvent struct {
	ReportID     uuid.UUID `json:"reportId"`
	OwnerUserID  uuid.UUID `json:"ownerUserId"`
	BuyerUserID  uuid.UUID `json:"buyerUserId"`
	DownloadCost int       `json:"downloadCost"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// BountyCreatedEvent carries the stake taken from the requester.
type BountyCreatedEvent struct {
	BountyID        uuid.UUID `json:"bountyId"`
	RequesterUserID uuid.UUID `json:"requesterUserId"`
	PropertyAddress string    `json:"propertyAddress"`
	StakedCredits   int       `json:"stakedCredits"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BountyFulfilledEvent is emitted when an upload matches an open bounty and
// the stake transfers to the uploader.
type BountyFulfilledEvent struct {
	BountyID          uuid.UUID `json:"bountyId"`
	RequesterUserID   uuid.UUID `json:"requesterUserId"`
	FulfilledByUserID uuid.UUID `json:"fulfilledByUserId"`
	FulfilledReportID uuid.UUID `json:"fulfilledReportId"`
	PropertyAddress   string    `json:"propertyAddress"`
	StakedCredits     int       `json:"stakedCredits"`
	FulfilledAt       time.Time `json:"fulfilledAt"`
}

// BountyCancelledEvent records the refund back to the requester.
type BountyCancelledEvent struct {
	BountyID        uuid.UUID `json:"bountyId"`
	RequesterUserID uuid.UUID `json:"requesterUserId"`
	RefundedCredits int       `json:"refundedCredits"`
	CancelledAt     time.Time `json:"cancelledAt"`
}
