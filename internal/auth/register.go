package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/internal/users"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	dbpkg "github.com/griffinshaw/dealbrief-backend/pkg/db"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
	"github.com/griffinshaw/dealbrief-backend/pkg/security"
)

// RegisterRequest contains the payload required for onboarding a new member.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// RegisterResponse returns the created user and the signup bonus credited to
// their ledger.
type RegisterResponse struct {
	User        *users.UserDTO `json:"user"`
	SignupBonus int            `json:"signup_bonus"`
}

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserStore is the slice of the users repository the onboarding transaction
// needs. Factories receive the transaction handle so every read and write
// joins it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// LedgerRecorder records the signup bonus entry inside the same transaction.
type LedgerRecorder interface {
	RecordEntry(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error)
}

type registerOutboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TxRunner        txRunner
	UserRepoFactory func(tx *gorm.DB) UserStore
	LedgerFactory   func(tx *gorm.DB) LedgerRecorder
	Outbox          registerOutboxPublisher
	PasswordConfig  config.PasswordConfig
	Credits         config.CreditsConfig
}

type registerService struct {
	tx          txRunner
	userRepo    func(tx *gorm.DB) UserStore
	ledgerRec   func(tx *gorm.DB) LedgerRecorder
	outbox      registerOutboxPublisher
	passwordCfg config.PasswordConfig
	signupBonus int
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.UserRepoFactory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository factory required")
	}
	if params.LedgerFactory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger factory required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Credits.SignupBonus <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signup bonus must be positive")
	}
	return &registerService{
		tx:          params.TxRunner,
		userRepo:    params.UserRepoFactory,
		ledgerRec:   params.LedgerFactory,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		signupBonus: params.Credits.SignupBonus,
	}, nil
}

// Register creates the user, their signup bonus ledger entry, and the
// registration event in one transaction. A user row never exists without its
// bonus entry.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepo(tx)
		ledgerRec := s.ledgerRec(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_users_email") || dbpkg.IsUniqueViolation(err, "users.email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if _, err := ledgerRec.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:      user.ID,
			Amount:      s.signupBonus,
			Kind:        enums.LedgerEntryKindSignupBonus,
			Description: "signup bonus",
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID},
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				SignupBonus:  s.signupBonus,
				RegisteredAt: user.CreatedAt,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue registration event")
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RegisterResponse{
		User:        users.FromModel(created),
		SignupBonus: s.signupBonus,
	}, nil
}
