package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/internal/analysis"
	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/internal/reports"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

type stubReportRegistry struct {
	byHash         *models.Report
	byID           *models.Report
	registerErr    error
	registered     *reports.RegisterReportInput
	incrementCalls int
	deleteCalls    int
	deleteErr      error
}

func (s *stubReportRegistry) WithTx(tx *gorm.DB) reports.Service { return s }

func (s *stubReportRegistry) Register(ctx context.Context, input reports.RegisterReportInput) (*models.Report, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	s.registered = &input
	return &models.Report{
		ID:              uuid.New(),
		OwnerUserID:     input.OwnerUserID,
		PropertyAddress: input.PropertyAddress,
		ContentHash:     input.ContentHash,
		FileName:        input.FileName,
		FileSizeBytes:   input.FileSizeBytes,
		StorageKey:      input.StorageKey,
		IsPublic:        true,
		EstimatedCredit: input.EstimatedCredit,
		KeyIssueTags:    input.KeyIssueTags,
		Battlecard:      input.Battlecard,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func (s *stubReportRegistry) FindByHash(ctx context.Context, contentHash string) (*models.Report, error) {
	if s.byHash != nil && s.byHash.ContentHash == contentHash {
		copied := *s.byHash
		return &copied, nil
	}
	return nil, nil
}

func (s *stubReportRegistry) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	if s.byID == nil || s.byID.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	}
	copied := *s.byID
	return &copied, nil
}

func (s *stubReportRegistry) Search(ctx context.Context, query string, params pagination.Params) (*reports.SearchResult, error) {
	panic("not implemented")
}

func (s *stubReportRegistry) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, params pagination.Params) (*reports.SearchResult, error) {
	panic("not implemented")
}

func (s *stubReportRegistry) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	s.incrementCalls++
	return nil
}

func (s *stubReportRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleteCalls++
	return s.deleteErr
}

type stubLedger struct {
	balance   int
	lockErr   error
	recordErr error
	lockCalls int
	entries   []ledger.RecordEntryInput
}

func (s *stubLedger) WithTx(tx *gorm.DB) ledger.Service { return s }

func (s *stubLedger) RecordEntry(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	s.entries = append(s.entries, input)
	return &models.LedgerEntry{ID: uuid.New(), UserID: input.UserID, Amount: input.Amount, Kind: input.Kind}, nil
}

func (s *stubLedger) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.balance, nil
}

func (s *stubLedger) GetStats(ctx context.Context, userID uuid.UUID) (*ledger.Stats, error) {
	panic("not implemented")
}

func (s *stubLedger) ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.EntryPage, error) {
	panic("not implemented")
}

func (s *stubLedger) LockBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	s.lockCalls++
	if s.lockErr != nil {
		return 0, s.lockErr
	}
	return s.balance, nil
}

type stubDownloadStore struct {
	exists    []bool
	existsErr error
	createErr error
	created   []models.Download
}

func (s *stubDownloadStore) WithTx(tx *gorm.DB) DownloadRepository { return s }

func (s *stubDownloadStore) Create(ctx context.Context, download *models.Download) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *download)
	return nil
}

// Exists pops queued answers and repeats the last one, so tests can script
// the pre-check and the in-transaction recheck separately.
func (s *stubDownloadStore) Exists(ctx context.Context, userID, reportID uuid.UUID) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	if len(s.exists) == 0 {
		return false, nil
	}
	next := s.exists[0]
	if len(s.exists) > 1 {
		s.exists = s.exists[1:]
	}
	return next, nil
}

type stubMatcher struct {
	bounty *models.Bounty
	err    error
	calls  int
}

func (s *stubMatcher) MatchAndFulfill(ctx context.Context, report *models.Report) (*models.Bounty, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.bounty == nil {
		return nil, nil
	}
	copied := *s.bounty
	return &copied, nil
}

type stubAnalyzer struct {
	card  *analysis.Battlecard
	calls int
}

func (s *stubAnalyzer) Generate(ctx context.Context, input analysis.Input) *analysis.Battlecard {
	s.calls++
	if s.card != nil {
		return s.card
	}
	return analysis.FallbackBattlecard(input)
}

type stubObjectStore struct {
	uploadErr    error
	signErr      error
	signedURL    string
	uploadedKeys []string
	contentTypes []string
	deletedKeys  []string
}

func (s *stubObjectStore) UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploadedKeys = append(s.uploadedKeys, object)
	s.contentTypes = append(s.contentTypes, contentType)
	return nil
}

func (s *stubObjectStore) DeleteObject(ctx context.Context, bucket, object string) error {
	s.deletedKeys = append(s.deletedKeys, object)
	return nil
}

func (s *stubObjectStore) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	if s.signedURL != "" {
		return s.signedURL, nil
	}
	return "https://storage.invalid/" + object, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type exchangeDeps struct {
	registry  *stubReportRegistry
	ledgerSvc *stubLedger
	downloads *stubDownloadStore
	matcher   *stubMatcher
	analyzer  *stubAnalyzer
	store     *stubObjectStore
	publisher *stubOutboxPublisher
}

func newExchangeDeps() *exchangeDeps {
	return &exchangeDeps{
		registry:  &stubReportRegistry{},
		ledgerSvc: &stubLedger{balance: 20},
		downloads: &stubDownloadStore{},
		matcher:   &stubMatcher{},
		analyzer:  &stubAnalyzer{},
		store:     &stubObjectStore{},
		publisher: &stubOutboxPublisher{},
	}
}

func newExchangeService(t *testing.T, deps *exchangeDeps) Service {
	t.Helper()
	svc, err := NewService(
		stubTxRunner{},
		deps.registry,
		deps.ledgerSvc,
		deps.downloads,
		deps.matcher,
		deps.analyzer,
		deps.store,
		deps.publisher,
		nil,
		testExchangeLogger(),
		Config{
			Bucket:         "dealbrief-test",
			DownloadURLTTL: 15 * time.Minute,
			MaxUploadBytes: 1 << 20,
			Credits:        config.CreditsConfig{SignupBonus: 25, UploadReward: 10, DownloadCost: 5, MinBountyStake: 1},
		},
	)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func testExchangeLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "exchange-test", Output: io.Discard})
}

func TestUploadRegistersReportAndRewardsOwner(t *testing.T) {
	deps := newExchangeDeps()
	deps.analyzer.card = &analysis.Battlecard{
		Summary:       "Roof and electrical need attention.",
		SeverityScore: 6,
		KeyIssues: []analysis.KeyIssue{
			{Title: "Roof wear", Severity: "medium", EstimatedRepairCost: decimal.NewFromInt(4200)},
		},
		NegotiationPoints:    []string{"Ask for a roofing credit."},
		EstimatedRepairTotal: decimal.NewFromInt(4200),
		EstimatedCredit:      4200,
		Source:               analysis.SourceGemini,
	}
	svc := newExchangeService(t, deps)

	owner := uuid.New()
	data := []byte("%PDF-1.7\nfixture inspection body")
	sum := sha256.Sum256(data)
	wantHash := hex.EncodeToString(sum[:])

	result, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     owner,
		PropertyAddress: "  500 Harbor View Ln, Mystic CT  ",
		FileName:        "inspection report.pdf",
		Data:            data,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Report == nil || result.RewardCredits != 10 {
		t.Fatalf("expected report with 10 credit reward, got %+v", result)
	}
	if result.Warning != "" || result.FulfilledBounty != nil {
		t.Fatalf("expected clean result, got warning %q bounty %+v", result.Warning, result.FulfilledBounty)
	}

	reg := deps.registry.registered
	if reg == nil {
		t.Fatal("expected report to be registered")
	}
	if reg.ContentHash != wantHash {
		t.Fatalf("expected content hash %s, got %s", wantHash, reg.ContentHash)
	}
	if reg.PropertyAddress != "500 Harbor View Ln, Mystic CT" {
		t.Fatalf("expected trimmed address, got %q", reg.PropertyAddress)
	}
	if reg.FileName != "inspection-report.pdf" {
		t.Fatalf("expected sanitized file name, got %q", reg.FileName)
	}
	if !strings.HasPrefix(reg.StorageKey, "reports/") || !strings.HasSuffix(reg.StorageKey, ".pdf") {
		t.Fatalf("unexpected storage key %q", reg.StorageKey)
	}
	if reg.EstimatedCredit != 4200 || len(reg.KeyIssueTags) != 1 || reg.KeyIssueTags[0] != "roof wear" {
		t.Fatalf("expected battlecard-derived fields, got %+v", reg)
	}

	if len(deps.store.uploadedKeys) != 1 || deps.store.uploadedKeys[0] != reg.StorageKey {
		t.Fatalf("expected one object upload under %q, got %v", reg.StorageKey, deps.store.uploadedKeys)
	}
	if deps.store.contentTypes[0] != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", deps.store.contentTypes[0])
	}

	if len(deps.ledgerSvc.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(deps.ledgerSvc.entries))
	}
	entry := deps.ledgerSvc.entries[0]
	if entry.UserID != owner || entry.Amount != 10 || entry.Kind != enums.LedgerEntryKindUpload {
		t.Fatalf("unexpected reward entry %+v", entry)
	}
	if entry.ReportID == nil || *entry.ReportID != result.Report.ID {
		t.Fatalf("expected reward entry linked to report, got %+v", entry)
	}

	if len(deps.publisher.events) != 1 || deps.publisher.events[0].EventType != enums.EventReportUploaded {
		t.Fatalf("expected one report_uploaded event, got %+v", deps.publisher.events)
	}
	payload, ok := deps.publisher.events[0].Data.(payloads.ReportUploadedEvent)
	if !ok || payload.UploadReward != 10 || payload.ContentHash != wantHash {
		t.Fatalf("unexpected event payload %+v", deps.publisher.events[0].Data)
	}
}

func TestUploadDuplicateHashRejected(t *testing.T) {
	deps := newExchangeDeps()
	data := []byte("%PDF-1.4\nduplicate body")
	sum := sha256.Sum256(data)
	deps.registry.byHash = &models.Report{ID: uuid.New(), ContentHash: hex.EncodeToString(sum[:])}
	svc := newExchangeService(t, deps)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "77 Quarry Rd, Bend OR",
		FileName:        "dup.pdf",
		Data:            data,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if deps.analyzer.calls != 0 {
		t.Fatalf("expected no analysis for duplicates, got %d calls", deps.analyzer.calls)
	}
	if len(deps.store.uploadedKeys) != 0 || len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected duplicate to leave no side effects")
	}
}

func TestUploadValidation(t *testing.T) {
	owner := uuid.New()
	valid := []byte("%PDF-1.4\nbody")
	cases := []struct {
		name  string
		input UploadInput
	}{
		{"missing owner", UploadInput{PropertyAddress: "1 Elm St, Dover DE", FileName: "r.pdf", Data: valid}},
		{"missing file name", UploadInput{OwnerUserID: owner, PropertyAddress: "1 Elm St, Dover DE", Data: valid}},
		{"blank address", UploadInput{OwnerUserID: owner, PropertyAddress: "   ", FileName: "r.pdf", Data: valid}},
		{"empty file", UploadInput{OwnerUserID: owner, PropertyAddress: "1 Elm St, Dover DE", FileName: "r.pdf"}},
		{"not a pdf", UploadInput{OwnerUserID: owner, PropertyAddress: "1 Elm St, Dover DE", FileName: "r.pdf", Data: []byte("plain text")}},
		{"oversize file", UploadInput{OwnerUserID: owner, PropertyAddress: "1 Elm St, Dover DE", FileName: "r.pdf", Data: append([]byte("%PDF-"), make([]byte, 1<<20)...)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newExchangeDeps()
			svc := newExchangeService(t, deps)

			_, err := svc.Upload(context.Background(), tc.input)
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(deps.store.uploadedKeys) != 0 {
				t.Fatalf("expected no object upload, got %v", deps.store.uploadedKeys)
			}
		})
	}
}

func TestUploadRegisterConflictRemovesObject(t *testing.T) {
	deps := newExchangeDeps()
	deps.registry.registerErr = pkgerrors.New(pkgerrors.CodeConflict, "an identical report already exists")
	svc := newExchangeService(t, deps)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "9 Ridgecrest Ave, Boone NC",
		FileName:        "race.pdf",
		Data:            []byte("%PDF-1.5\nracing upload"),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(deps.store.uploadedKeys) != 1 || len(deps.store.deletedKeys) != 1 {
		t.Fatalf("expected uploaded object to be removed, uploads %v deletes %v", deps.store.uploadedKeys, deps.store.deletedKeys)
	}
	if deps.store.deletedKeys[0] != deps.store.uploadedKeys[0] {
		t.Fatalf("expected the uploaded key to be deleted, got %q vs %q", deps.store.deletedKeys[0], deps.store.uploadedKeys[0])
	}
	if len(deps.publisher.events) != 0 {
		t.Fatalf("expected no events, got %+v", deps.publisher.events)
	}
}

func TestUploadStorageFailure(t *testing.T) {
	deps := newExchangeDeps()
	deps.store.uploadErr = errors.New("bucket unavailable")
	svc := newExchangeService(t, deps)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "14 Fenwick Pl, Duluth MN",
		FileName:        "storage.pdf",
		Data:            []byte("%PDF-1.5\nstorage outage"),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if deps.registry.registered != nil || len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected nothing persisted after storage failure")
	}
}

func TestUploadBountyMatchFailureIsSoftWarning(t *testing.T) {
	deps := newExchangeDeps()
	deps.matcher.err = errors.New("matcher unavailable")
	svc := newExchangeService(t, deps)

	result, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "2 Latchford Way, Provo UT",
		FileName:        "soft.pdf",
		Data:            []byte("%PDF-1.6\nsoft warning body"),
	})
	if err != nil {
		t.Fatalf("expected upload to succeed despite matcher failure, got %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected a warning on the result")
	}
	if result.FulfilledBounty != nil {
		t.Fatalf("expected no fulfilled bounty, got %+v", result.FulfilledBounty)
	}
	if len(deps.ledgerSvc.entries) != 1 || deps.ledgerSvc.entries[0].Kind != enums.LedgerEntryKindUpload {
		t.Fatalf("expected the upload reward to stand, got %+v", deps.ledgerSvc.entries)
	}
}

func TestUploadFulfillsMatchingBounty(t *testing.T) {
	deps := newExchangeDeps()
	deps.matcher.bounty = &models.Bounty{
		ID:            uuid.New(),
		StakedCredits: 7,
		Status:        enums.BountyStatusFulfilled,
	}
	svc := newExchangeService(t, deps)

	result, err := svc.Upload(context.Background(), UploadInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "31 Saddleback Dr, Reno NV",
		FileName:        "match.pdf",
		Data:            []byte("%PDF-1.6\nmatching body"),
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if deps.matcher.calls != 1 {
		t.Fatalf("expected one match attempt, got %d", deps.matcher.calls)
	}
	if result.FulfilledBounty == nil || result.FulfilledBounty.ID != deps.matcher.bounty.ID {
		t.Fatalf("expected fulfilled bounty on result, got %+v", result.FulfilledBounty)
	}
	if result.Warning != "" {
		t.Fatalf("expected no warning, got %q", result.Warning)
	}
}

func TestDownloadChargesOnce(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{
		ID:              uuid.New(),
		OwnerUserID:     uuid.New(),
		PropertyAddress: "500 Harbor View Ln, Mystic CT",
		StorageKey:      "reports/charged.pdf",
	}
	deps.registry.byID = report
	deps.store.signedURL = "https://signed.example/charged"
	deps.ledgerSvc.balance = 9
	svc := newExchangeService(t, deps)

	buyer := uuid.New()
	result, err := svc.Download(context.Background(), buyer, report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Charged || result.CreditSpent != 5 {
		t.Fatalf("expected a 5 credit charge, got %+v", result)
	}
	if result.URL != "https://signed.example/charged" {
		t.Fatalf("expected signed url, got %q", result.URL)
	}
	if deps.ledgerSvc.lockCalls != 1 {
		t.Fatalf("expected one balance lock, got %d", deps.ledgerSvc.lockCalls)
	}
	if len(deps.downloads.created) != 1 || deps.downloads.created[0].CreditSpent != 5 || deps.downloads.created[0].UserID != buyer {
		t.Fatalf("unexpected download row %+v", deps.downloads.created)
	}
	if len(deps.ledgerSvc.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(deps.ledgerSvc.entries))
	}
	entry := deps.ledgerSvc.entries[0]
	if entry.Amount != -5 || entry.Kind != enums.LedgerEntryKindDownload || entry.ReportID == nil || *entry.ReportID != report.ID {
		t.Fatalf("unexpected debit entry %+v", entry)
	}
	if deps.registry.incrementCalls != 1 {
		t.Fatalf("expected download count increment, got %d", deps.registry.incrementCalls)
	}
	if len(deps.publisher.events) != 1 || deps.publisher.events[0].EventType != enums.EventReportDownloaded {
		t.Fatalf("expected one report_downloaded event, got %+v", deps.publisher.events)
	}
}

func TestDownloadOwnerIsFree(t *testing.T) {
	deps := newExchangeDeps()
	owner := uuid.New()
	report := &models.Report{ID: uuid.New(), OwnerUserID: owner, StorageKey: "reports/own.pdf"}
	deps.registry.byID = report
	svc := newExchangeService(t, deps)

	result, err := svc.Download(context.Background(), owner, report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Charged || result.CreditSpent != 0 {
		t.Fatalf("expected free owner download, got %+v", result)
	}
	if result.URL == "" {
		t.Fatal("expected signed url for owner")
	}
	if deps.ledgerSvc.lockCalls != 0 || len(deps.downloads.created) != 0 || len(deps.publisher.events) != 0 {
		t.Fatalf("expected no charge machinery for owner")
	}
}

func TestDownloadRepeatIsFree(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/repeat.pdf"}
	deps.registry.byID = report
	deps.downloads.exists = []bool{true}
	svc := newExchangeService(t, deps)

	result, err := svc.Download(context.Background(), uuid.New(), report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Charged {
		t.Fatalf("expected free repeat download, got %+v", result)
	}
	if deps.ledgerSvc.lockCalls != 0 || len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected no debit for repeat download")
	}
}

func TestDownloadInsufficientCredits(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/broke.pdf"}
	deps.registry.byID = report
	deps.ledgerSvc.balance = 4
	svc := newExchangeService(t, deps)

	_, err := svc.Download(context.Background(), uuid.New(), report.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if len(deps.downloads.created) != 0 || len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected rejected download to record nothing")
	}
	if deps.registry.incrementCalls != 0 || len(deps.publisher.events) != 0 {
		t.Fatalf("expected no count bump or events")
	}
}

func TestDownloadConcurrentUnlockStaysFree(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/race.pdf"}
	deps.registry.byID = report
	// Absent at the pre-check, present once the lock is held.
	deps.downloads.exists = []bool{false, true}
	svc := newExchangeService(t, deps)

	result, err := svc.Download(context.Background(), uuid.New(), report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Charged {
		t.Fatalf("expected free result after losing the race, got %+v", result)
	}
	if deps.ledgerSvc.lockCalls != 1 {
		t.Fatalf("expected the lock to have been taken, got %d", deps.ledgerSvc.lockCalls)
	}
	if len(deps.downloads.created) != 0 || len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected no double charge")
	}
}

func TestDownloadUniqueViolationStaysFree(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/unique.pdf"}
	deps.registry.byID = report
	deps.downloads.createErr = errors.New("UNIQUE constraint failed: downloads.user_id, downloads.report_id")
	svc := newExchangeService(t, deps)

	result, err := svc.Download(context.Background(), uuid.New(), report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Charged {
		t.Fatalf("expected free result, got %+v", result)
	}
	if len(deps.ledgerSvc.entries) != 0 {
		t.Fatalf("expected no debit after constraint violation")
	}
}

func TestDownloadUnknownReport(t *testing.T) {
	deps := newExchangeDeps()
	svc := newExchangeService(t, deps)

	_, err := svc.Download(context.Background(), uuid.New(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileURLForOwner(t *testing.T) {
	deps := newExchangeDeps()
	owner := uuid.New()
	report := &models.Report{ID: uuid.New(), OwnerUserID: owner, StorageKey: "reports/file.pdf"}
	deps.registry.byID = report
	deps.store.signedURL = "https://signed.example/file"
	svc := newExchangeService(t, deps)

	url, err := svc.FileURL(context.Background(), owner, report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if url != "https://signed.example/file" {
		t.Fatalf("expected signed url, got %q", url)
	}
}

func TestFileURLForPastDownloader(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/file2.pdf"}
	deps.registry.byID = report
	deps.downloads.exists = []bool{true}
	svc := newExchangeService(t, deps)

	url, err := svc.FileURL(context.Background(), uuid.New(), report.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if url == "" {
		t.Fatal("expected signed url")
	}
}

func TestFileURLLockedWithoutDownload(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/file3.pdf"}
	deps.registry.byID = report
	svc := newExchangeService(t, deps)

	_, err := svc.FileURL(context.Background(), uuid.New(), report.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteByOwner(t *testing.T) {
	deps := newExchangeDeps()
	owner := uuid.New()
	report := &models.Report{ID: uuid.New(), OwnerUserID: owner, StorageKey: "reports/gone.pdf"}
	deps.registry.byID = report
	svc := newExchangeService(t, deps)

	if err := svc.Delete(context.Background(), owner, enums.MemberRoleMember, report.ID); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if deps.registry.deleteCalls != 1 {
		t.Fatalf("expected one registry delete, got %d", deps.registry.deleteCalls)
	}
	if len(deps.store.deletedKeys) != 1 || deps.store.deletedKeys[0] != report.StorageKey {
		t.Fatalf("expected object cleanup, got %v", deps.store.deletedKeys)
	}
	if len(deps.publisher.events) != 1 || deps.publisher.events[0].EventType != enums.EventReportDeleted {
		t.Fatalf("expected one report_deleted event, got %+v", deps.publisher.events)
	}
	payload, ok := deps.publisher.events[0].Data.(payloads.ReportDeletedEvent)
	if !ok || payload.Reason != "owner_request" {
		t.Fatalf("unexpected delete payload %+v", deps.publisher.events[0].Data)
	}
}

func TestDeleteByAdminIsModeration(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/modded.pdf"}
	deps.registry.byID = report
	svc := newExchangeService(t, deps)

	admin := uuid.New()
	if err := svc.Delete(context.Background(), admin, enums.MemberRoleAdmin, report.ID); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	payload, ok := deps.publisher.events[0].Data.(payloads.ReportDeletedEvent)
	if !ok || payload.Reason != "moderation" {
		t.Fatalf("unexpected delete payload %+v", deps.publisher.events[0].Data)
	}
	if payload.OwnerUserID != report.OwnerUserID {
		t.Fatalf("expected owner preserved in payload, got %+v", payload)
	}
}

func TestDeleteForbiddenForStrangers(t *testing.T) {
	deps := newExchangeDeps()
	report := &models.Report{ID: uuid.New(), OwnerUserID: uuid.New(), StorageKey: "reports/keep.pdf"}
	deps.registry.byID = report
	svc := newExchangeService(t, deps)

	err := svc.Delete(context.Background(), uuid.New(), enums.MemberRoleMember, report.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if deps.registry.deleteCalls != 0 || len(deps.store.deletedKeys) != 0 {
		t.Fatalf("expected nothing deleted")
	}
}
