package exchange

import (
	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/internal/analysis"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
)

// UploadInput carries one inspection report submission.
type UploadInput struct {
	OwnerUserID     uuid.UUID
	PropertyAddress string
	FileName        string
	Data            []byte
}

// UploadResult is returned from a successful upload. FulfilledBounty is set
// when the new report closed an open bounty; Warning is set when bounty
// matching failed after the upload itself committed.
type UploadResult struct {
	Report          *models.Report
	RewardCredits   int
	Battlecard      *analysis.Battlecard
	FulfilledBounty *models.Bounty
	Warning         string
}

// DownloadResult pairs a report with a time-limited signed URL. Charged is
// false for owners and for repeat downloads.
type DownloadResult struct {
	Report      *models.Report
	URL         string
	Charged     bool
	CreditSpent int
}
