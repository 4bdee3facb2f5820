package exchange

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/internal/analysis"
	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/internal/reports"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	dbpkg "github.com/griffinshaw/dealbrief-backend/pkg/db"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/metrics"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

const pdfContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// errAlreadyDownloaded aborts the charge transaction when the user already
// holds a download row; the caller maps it to a free success.
var errAlreadyDownloaded = errors.New("report already downloaded")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type objectStore interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, bucket, object string) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type battlecardGenerator interface {
	Generate(ctx context.Context, input analysis.Input) *analysis.Battlecard
}

type bountyMatcher interface {
	MatchAndFulfill(ctx context.Context, report *models.Report) (*models.Bounty, error)
}

// Service orchestrates the credit-bearing marketplace workflows. Uploads
// reward the owner, downloads debit the buyer, and both sides of every
// movement commit in the same transaction as the row that justifies it.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	Download(ctx context.Context, userID, reportID uuid.UUID) (*DownloadResult, error)
	FileURL(ctx context.Context, userID, reportID uuid.UUID) (string, error)
	Delete(ctx context.Context, actorUserID uuid.UUID, actorRole enums.MemberRole, reportID uuid.UUID) error
}

// Config carries the workflow tunables.
type Config struct {
	Bucket         string
	DownloadURLTTL time.Duration
	MaxUploadBytes int64
	Credits        config.CreditsConfig
}

type service struct {
	tx        txRunner
	reports   reports.Service
	ledger    ledger.Service
	downloads DownloadRepository
	matcher   bountyMatcher
	analyzer  battlecardGenerator
	store     objectStore
	outbox    outboxPublisher
	metrics   *metrics.ExchangeMetrics
	logg      *logger.Logger
	cfg       Config
}

// NewService wires the exchange workflows. The metrics collector may be nil.
func NewService(
	tx txRunner,
	reportsSvc reports.Service,
	ledgerSvc ledger.Service,
	downloads DownloadRepository,
	matcher bountyMatcher,
	analyzer battlecardGenerator,
	store objectStore,
	publisher outboxPublisher,
	exchangeMetrics *metrics.ExchangeMetrics,
	logg *logger.Logger,
	cfg Config,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if reportsSvc == nil {
		return nil, fmt.Errorf("reports service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if downloads == nil {
		return nil, fmt.Errorf("download repository required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("bounty matcher required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("battlecard generator required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket required")
	}
	if cfg.DownloadURLTTL <= 0 {
		return nil, fmt.Errorf("download url ttl must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &service{
		tx:        tx,
		reports:   reportsSvc,
		ledger:    ledgerSvc,
		downloads: downloads,
		matcher:   matcher,
		analyzer:  analyzer,
		store:     store,
		outbox:    publisher,
		metrics:   exchangeMetrics,
		logg:      logg,
		cfg:       cfg,
	}, nil
}

// Upload registers a new inspection report and rewards the owner. The report
// row, the reward entry and the outbox event commit together; the battlecard
// never blocks the upload because analysis failures fall back to the
// deterministic builder. Bounty matching runs after the commit and its errors
// surface only as a warning on the result.
func (s *service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id is required")
	}
	fileName := sanitizeFileName(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	address := strings.TrimSpace(input.PropertyAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property address is required")
	}
	if len(input.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report file is empty")
	}
	if int64(len(input.Data)) > s.cfg.MaxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("report file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	if !bytes.HasPrefix(input.Data, pdfMagic) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report file must be a PDF")
	}

	sum := sha256.Sum256(input.Data)
	contentHash := hex.EncodeToString(sum[:])

	existing, err := s.reports.FindByHash(ctx, contentHash)
	if err != nil {
		s.metrics.IncUpload("error")
		return nil, err
	}
	if existing != nil {
		s.metrics.IncUpload("duplicate")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an identical report already exists")
	}

	started := time.Now()
	card := s.analyzer.Generate(ctx, analysis.Input{
		FileName:        fileName,
		FileSizeBytes:   int64(len(input.Data)),
		ContentHash:     contentHash,
		PropertyAddress: address,
	})
	s.metrics.ObserveAnalysis(card.Source, time.Since(started))
	if card.Source == analysis.SourceFallback {
		s.metrics.IncAnalysisFallback()
	}
	battlecardJSON, err := json.Marshal(card)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode battlecard")
	}

	storageKey := fmt.Sprintf("reports/%s.pdf", uuid.New())
	if err := s.store.UploadObject(ctx, s.cfg.Bucket, storageKey, pdfContentType, bytes.NewReader(input.Data)); err != nil {
		s.metrics.IncUpload("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store report file")
	}

	var report *models.Report
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, txErr := s.reports.WithTx(tx).Register(ctx, reports.RegisterReportInput{
			OwnerUserID:     input.OwnerUserID,
			PropertyAddress: address,
			ContentHash:     contentHash,
			FileName:        fileName,
			FileSizeBytes:   int64(len(input.Data)),
			StorageKey:      storageKey,
			EstimatedCredit: card.EstimatedCredit,
			KeyIssueTags:    card.IssueTags(),
			Battlecard:      battlecardJSON,
		})
		if txErr != nil {
			return txErr
		}
		if _, txErr = s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      input.OwnerUserID,
			Amount:      s.cfg.Credits.UploadReward,
			Kind:        enums.LedgerEntryKindUpload,
			ReportID:    &created.ID,
			Description: "upload reward",
		}); txErr != nil {
			return txErr
		}
		if txErr = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReportUploaded,
			AggregateType: enums.AggregateReport,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: input.OwnerUserID},
			Data: payloads.ReportUploadedEvent{
				ReportID:        created.ID,
				OwnerUserID:     input.OwnerUserID,
				PropertyAddress: address,
				ContentHash:     contentHash,
				UploadReward:    s.cfg.Credits.UploadReward,
				SeverityScore:   card.SeverityScore,
				KeyIssueTags:    card.IssueTags(),
				UploadedAt:      created.CreatedAt,
			},
			Version: 1,
		}); txErr != nil {
			return txErr
		}
		report = created
		return nil
	})
	if err != nil {
		s.removeObject(ctx, storageKey)
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeConflict {
			s.metrics.IncUpload("duplicate")
		} else {
			s.metrics.IncUpload("error")
		}
		return nil, err
	}

	s.metrics.IncUpload("success")
	s.metrics.AddCreditsMoved(string(enums.LedgerEntryKindUpload), s.cfg.Credits.UploadReward)

	result := &UploadResult{
		Report:        report,
		RewardCredits: s.cfg.Credits.UploadReward,
		Battlecard:    card,
	}
	fulfilled, matchErr := s.matcher.MatchAndFulfill(ctx, report)
	if matchErr != nil {
		logCtx := s.logg.WithReportID(ctx, report.ID.String())
		s.logg.Error(logCtx, "bounty match failed after upload", matchErr)
		result.Warning = "the report was saved but bounty matching failed; open bounties may still be waiting"
	} else if fulfilled != nil {
		s.metrics.IncBountyFulfilled()
		s.metrics.AddCreditsMoved(string(enums.LedgerEntryKindBountyEarned), fulfilled.StakedCredits)
		result.FulfilledBounty = fulfilled
	}
	return result, nil
}

// Download unlocks a report for a user. Owners and repeat downloaders get a
// fresh signed URL without charge; everyone else pays DownloadCost exactly
// once, checked and debited under the per-user row lock.
func (s *service) Download(ctx context.Context, userID, reportID uuid.UUID) (*DownloadResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if report.OwnerUserID == userID {
		s.metrics.IncDownload("owner")
		return s.signedResult(report, false, 0)
	}
	downloaded, err := s.downloads.Exists(ctx, userID, reportID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check download history")
	}
	if downloaded {
		s.metrics.IncDownload("repeat")
		return s.signedResult(report, false, 0)
	}

	cost := s.cfg.Credits.DownloadCost
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerTx := s.ledger.WithTx(tx)
		downloadsTx := s.downloads.WithTx(tx)

		balance, txErr := ledgerTx.LockBalance(ctx, userID)
		if txErr != nil {
			return txErr
		}
		// Re-check under the lock so a concurrent unlock of the same report
		// by this user stays free instead of double-charging.
		already, txErr := downloadsTx.Exists(ctx, userID, reportID)
		if txErr != nil {
			return txErr
		}
		if already {
			return errAlreadyDownloaded
		}
		if balance < cost {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredits,
				fmt.Sprintf("balance %d is below the download cost of %d", balance, cost))
		}

		if txErr = downloadsTx.Create(ctx, &models.Download{
			ID:          uuid.New(),
			UserID:      userID,
			ReportID:    reportID,
			CreditSpent: cost,
		}); txErr != nil {
			if dbpkg.IsUniqueViolation(txErr, "idx_downloads_user_report") || dbpkg.IsUniqueViolation(txErr, "downloads.user_id") {
				return errAlreadyDownloaded
			}
			return txErr
		}
		if _, txErr = ledgerTx.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      userID,
			Amount:      -cost,
			Kind:        enums.LedgerEntryKindDownload,
			ReportID:    &report.ID,
			Description: "report download",
		}); txErr != nil {
			return txErr
		}
		if txErr = s.reports.WithTx(tx).IncrementDownloadCount(ctx, reportID); txErr != nil {
			return txErr
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReportDownloaded,
			AggregateType: enums.AggregateReport,
			AggregateID:   report.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ReportDownloadedEvent{
				ReportID:     report.ID,
				OwnerUserID:  report.OwnerUserID,
				BuyerUserID:  userID,
				DownloadCost: cost,
				DownloadedAt: time.Now().UTC(),
			},
			Version: 1,
		})
	})
	switch {
	case errors.Is(err, errAlreadyDownloaded):
		s.metrics.IncDownload("repeat")
		return s.signedResult(report, false, 0)
	case err != nil:
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeInsufficientCredits {
			s.metrics.IncDownload("insufficient")
		} else {
			s.metrics.IncDownload("error")
		}
		return nil, err
	}

	s.metrics.IncDownload("charged")
	s.metrics.AddCreditsMoved(string(enums.LedgerEntryKindDownload), cost)
	return s.signedResult(report, true, cost)
}

// FileURL re-issues a signed URL for a report the user already has access
// to, either as its owner or as a past downloader.
func (s *service) FileURL(ctx context.Context, userID, reportID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return "", err
	}
	if report.OwnerUserID != userID {
		downloaded, err := s.downloads.Exists(ctx, userID, reportID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check download history")
		}
		if !downloaded {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "report has not been unlocked")
		}
	}
	url, err := s.store.SignedReadURL(s.cfg.Bucket, report.StorageKey, s.cfg.DownloadURLTTL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}
	return url, nil
}

// Delete removes a report from the registry. Owners can remove their own
// reports; admins can remove any. Ledger history survives the deletion and
// download rows cascade with the report.
func (s *service) Delete(ctx context.Context, actorUserID uuid.UUID, actorRole enums.MemberRole, reportID uuid.UUID) error {
	if actorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	isAdmin := actorRole == enums.MemberRoleAdmin
	if report.OwnerUserID != actorUserID && !isAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "report does not belong to user")
	}
	reason := "owner_request"
	if report.OwnerUserID != actorUserID {
		reason = "moderation"
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if txErr := s.reports.WithTx(tx).Delete(ctx, reportID); txErr != nil {
			return txErr
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReportDeleted,
			AggregateType: enums.AggregateReport,
			AggregateID:   report.ID,
			Actor:         &outbox.ActorRef{UserID: actorUserID, Role: actorRole.String()},
			Data: payloads.ReportDeletedEvent{
				ReportID:    report.ID,
				OwnerUserID: report.OwnerUserID,
				DeletedAt:   time.Now().UTC(),
				Reason:      reason,
			},
			Version: 1,
		})
	})
	if err != nil {
		return err
	}

	s.removeObject(ctx, report.StorageKey)
	return nil
}

func (s *service) signedResult(report *models.Report, charged bool, spent int) (*DownloadResult, error) {
	url, err := s.store.SignedReadURL(s.cfg.Bucket, report.StorageKey, s.cfg.DownloadURLTTL)
	if err != nil {
		// The debit, if any, already committed; the download row makes the
		// retry free.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}
	return &DownloadResult{
		Report:      report,
		URL:         url,
		Charged:     charged,
		CreditSpent: spent,
	}, nil
}

// removeObject is best effort; failures are logged and the object is left
// orphaned in the bucket.
func (s *service) removeObject(ctx context.Context, storageKey string) {
	if err := s.store.DeleteObject(ctx, s.cfg.Bucket, storageKey); err != nil {
		logCtx := s.logg.WithField(ctx, "storage_key", storageKey)
		s.logg.Error(logCtx, "failed to remove report object", err)
	}
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
