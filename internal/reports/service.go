package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/griffinshaw/dealbrief-backend/pkg/db"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

// Service is the report registry: metadata storage, content-hash dedup and
// address search.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Register(ctx context.Context, input RegisterReportInput) (*models.Report, error)
	FindByHash(ctx context.Context, contentHash string) (*models.Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Search(ctx context.Context, query string, params pagination.Params) (*SearchResult, error)
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID, params pagination.Params) (*SearchResult, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// RegisterReportInput carries everything the registry persists for an upload.
type RegisterReportInput struct {
	OwnerUserID     uuid.UUID
	PropertyAddress string
	ContentHash     string
	FileName        string
	FileSizeBytes   int64
	StorageKey      string
	EstimatedCredit int
	KeyIssueTags    []string
	Battlecard      json.RawMessage
}

// NewService wires the report registry with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Register(ctx context.Context, input RegisterReportInput) (*models.Report, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id is required")
	}
	address := strings.TrimSpace(input.PropertyAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property address is required")
	}
	if strings.TrimSpace(input.ContentHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content hash is required")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}

	tags := input.KeyIssueTags
	if tags == nil {
		tags = []string{}
	}

	report := &models.Report{
		ID:              uuid.New(),
		OwnerUserID:     input.OwnerUserID,
		PropertyAddress: address,
		ContentHash:     input.ContentHash,
		FileName:        input.FileName,
		FileSizeBytes:   input.FileSizeBytes,
		StorageKey:      input.StorageKey,
		IsPublic:        true,
		EstimatedCredit: input.EstimatedCredit,
		KeyIssueTags:    tags,
		Battlecard:      input.Battlecard,
	}

	if err := s.repo.Create(ctx, report); err != nil {
		// The unique index is the authoritative duplicate guard; the earlier
		// FindByHash check only fails fast.
		if dbpkg.IsUniqueViolation(err, "content_hash") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an identical report already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist report")
	}
	return report, nil
}

func (s *service) FindByHash(ctx context.Context, contentHash string) (*models.Report, error) {
	if strings.TrimSpace(contentHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content hash is required")
	}
	report, err := s.repo.FindByHash(ctx, contentHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up report by hash")
	}
	return report, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id is required")
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}
	return report, nil
}

// Search lists public reports newest first, filtered by a case-insensitive
// address substring when a query is given.
func (s *service) Search(ctx context.Context, query string, params pagination.Params) (*SearchResult, error) {
	result, err := s.repo.Search(ctx, searchQuery{
		Pagination: params,
		Query:      query,
		PublicOnly: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search reports")
	}
	return result, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, params pagination.Params) (*SearchResult, error) {
	if ownerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id is required")
	}
	result, err := s.repo.ListByOwner(ctx, ownerUserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reports by owner")
	}
	return result, nil
}

func (s *service) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id is required")
	}
	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment download count")
	}
	return nil
}

// Delete removes the row unconditionally; ownership checks belong to the
// calling workflow.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete report")
	}
	return nil
}
