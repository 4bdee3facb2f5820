package bounties

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the bounty lifecycle. Every credit movement it performs is
// paired with the status transition that justifies it inside one transaction:
// the stake leaves the requester exactly once at creation and returns exactly
// once, either to the requester on cancel or to the fulfiller on fulfill.
type Service interface {
	Create(ctx context.Context, input CreateBountyInput) (*models.Bounty, error)
	Cancel(ctx context.Context, bountyID, requesterUserID uuid.UUID) (*models.Bounty, error)
	Fulfill(ctx context.Context, bountyID, fulfillerUserID, reportID uuid.UUID) (*models.Bounty, error)
	MatchAndFulfill(ctx context.Context, report *models.Report) (*models.Bounty, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error)
	ListByRequester(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*BountyPage, error)
	ListOpen(ctx context.Context, address string, params pagination.Params) (*BountyPage, error)
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	tx      txRunner
	outbox  outboxPublisher
	credits config.CreditsConfig
}

// CreateBountyInput carries the data required to open a bounty.
type CreateBountyInput struct {
	RequesterUserID uuid.UUID
	PropertyAddress string
	StakedCredits   int
}

// NewService builds a bounty service with the required dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, tx txRunner, outboxSvc outboxPublisher, credits config.CreditsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bounty repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		ledger:  ledgerSvc,
		tx:      tx,
		outbox:  outboxSvc,
		credits: credits,
	}, nil
}

// Create opens a bounty and debits the stake in one transaction. The balance
// check runs against a fresh sum under the requester's row lock, so two
// concurrent creates cannot both spend the same credits.
func (s *service) Create(ctx context.Context, input CreateBountyInput) (*models.Bounty, error) {
	if input.RequesterUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester user id required")
	}
	address := strings.TrimSpace(input.PropertyAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property address required")
	}
	if input.StakedCredits < s.credits.MinBountyStake {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("stake must be at least %d credits", s.credits.MinBountyStake))
	}

	bounty := &models.Bounty{
		ID:              uuid.New(),
		RequesterUserID: input.RequesterUserID,
		PropertyAddress: address,
		StakedCredits:   input.StakedCredits,
		Status:          enums.BountyStatusOpen,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, err := s.ledger.WithTx(tx).LockBalance(ctx, input.RequesterUserID)
		if err != nil {
			return err
		}
		if balance < input.StakedCredits {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredits,
				fmt.Sprintf("balance %d is below the requested stake of %d", balance, input.StakedCredits))
		}

		if err := s.repo.WithTx(tx).Create(ctx, bounty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bounty")
		}

		_, err = s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      input.RequesterUserID,
			Amount:      -input.StakedCredits,
			Kind:        enums.LedgerEntryKindBountyStake,
			BountyID:    &bounty.ID,
			Description: "bounty stake",
		})
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBountyCreated,
			AggregateType: enums.AggregateBounty,
			AggregateID:   bounty.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.RequesterUserID},
			Data: payloads.BountyCreatedEvent{
				BountyID:        bounty.ID,
				RequesterUserID: bounty.RequesterUserID,
				PropertyAddress: bounty.PropertyAddress,
				StakedCredits:   bounty.StakedCredits,
				CreatedAt:       time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return bounty, nil
}

// Cancel refunds the stake to the requester and closes the bounty in one
// transaction. The status-guarded update makes a cancel racing a fulfill
// resolve to a single winner; the loser reports a state conflict.
func (s *service) Cancel(ctx context.Context, bountyID, requesterUserID uuid.UUID) (*models.Bounty, error) {
	if bountyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bounty id required")
	}
	if requesterUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var cancelled *models.Bounty
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		bounty, err := repo.FindByID(ctx, bountyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bounty not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bounty")
		}
		if bounty.RequesterUserID != requesterUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "bounty does not belong to user")
		}
		if bounty.Status != enums.BountyStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bounty is no longer open")
		}

		now := time.Now().UTC()
		updated, err := repo.MarkCancelled(ctx, bountyID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel bounty")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bounty is no longer open")
		}

		_, err = s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      bounty.RequesterUserID,
			Amount:      bounty.StakedCredits,
			Kind:        enums.LedgerEntryKindBountyStake,
			BountyID:    &bounty.ID,
			Description: "bounty stake refund",
		})
		if err != nil {
			return err
		}

		bounty.Status = enums.BountyStatusCancelled
		bounty.CancelledAt = &now
		cancelled = bounty

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBountyCancelled,
			AggregateType: enums.AggregateBounty,
			AggregateID:   bounty.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: requesterUserID},
			Data: payloads.BountyCancelledEvent{
				BountyID:        bounty.ID,
				RequesterUserID: bounty.RequesterUserID,
				RefundedCredits: bounty.StakedCredits,
				CancelledAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Fulfill transfers the stake to the fulfiller and closes the bounty in one
// transaction. A second concurrent fulfiller loses the status-guarded update
// and reports a state conflict instead of double-crediting.
func (s *service) Fulfill(ctx context.Context, bountyID, fulfillerUserID, reportID uuid.UUID) (*models.Bounty, error) {
	if bountyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bounty id required")
	}
	if fulfillerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfiller user id required")
	}
	if reportID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}

	var fulfilled *models.Bounty
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		bounty, err := repo.FindByID(ctx, bountyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bounty not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bounty")
		}
		if bounty.RequesterUserID == fulfillerUserID {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "requester cannot fulfill their own bounty")
		}
		if bounty.Status != enums.BountyStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bounty is no longer open")
		}

		now := time.Now().UTC()
		updated, err := repo.MarkFulfilled(ctx, bountyID, fulfillerUserID, reportID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill bounty")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bounty is no longer open")
		}

		_, err = s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      fulfillerUserID,
			Amount:      bounty.StakedCredits,
			Kind:        enums.LedgerEntryKindBountyEarned,
			ReportID:    &reportID,
			BountyID:    &bounty.ID,
			Description: "bounty fulfillment reward",
		})
		if err != nil {
			return err
		}

		bounty.Status = enums.BountyStatusFulfilled
		bounty.FulfilledByUserID = &fulfillerUserID
		bounty.FulfilledReportID = &reportID
		bounty.FulfilledAt = &now
		fulfilled = bounty

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBountyFulfilled,
			AggregateType: enums.AggregateBounty,
			AggregateID:   bounty.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: fulfillerUserID},
			Data: payloads.BountyFulfilledEvent{
				BountyID:          bounty.ID,
				RequesterUserID:   bounty.RequesterUserID,
				FulfilledByUserID: fulfillerUserID,
				FulfilledReportID: reportID,
				PropertyAddress:   bounty.PropertyAddress,
				StakedCredits:     bounty.StakedCredits,
				FulfilledAt:       now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return fulfilled, nil
}

// MatchAndFulfill looks for an open bounty matching the report's address and
// fulfills it on behalf of the report owner. A nil bounty with nil error means
// no actionable match existed. Callers treat a returned error as a soft
// warning; it must never fail the upload that triggered the match.
func (s *service) MatchAndFulfill(ctx context.Context, report *models.Report) (*models.Bounty, error) {
	if report == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report required")
	}

	candidate, err := s.repo.FindOpenByAddress(ctx, report.PropertyAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match open bounty")
	}
	if candidate == nil {
		return nil, nil
	}
	if candidate.RequesterUserID == report.OwnerUserID {
		// Uploading a report never fulfills the uploader's own bounty.
		return nil, nil
	}

	return s.Fulfill(ctx, candidate.ID, report.OwnerUserID, report.ID)
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bounty id required")
	}
	bounty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bounty not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bounty")
	}
	return bounty, nil
}

func (s *service) ListByRequester(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*BountyPage, error) {
	if requesterUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester user id required")
	}
	page, err := s.repo.ListByRequester(ctx, requesterUserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bounties")
	}
	return page, nil
}

func (s *service) ListOpen(ctx context.Context, address string, params pagination.Params) (*BountyPage, error) {
	page, err := s.repo.ListOpen(ctx, address, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open bounties")
	}
	return page, nil
}
