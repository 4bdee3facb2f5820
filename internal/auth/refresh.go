package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/internal/users"
	pkgAuth "github.com/griffinshaw/dealbrief-backend/pkg/auth"
	"github.com/griffinshaw/dealbrief-backend/pkg/auth/session"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
)

// RefreshInput carries the expired (or expiring) access token and the refresh
// token presented for rotation.
type RefreshInput struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshService struct {
	users   refreshUserRepository
	session refreshSessionRotator
	jwtCfg  config.JWTConfig
}

type refreshUserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type refreshSessionRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
}

// RefreshServiceParams bundles dependencies for the refresh flow.
type RefreshServiceParams struct {
	UserRepo       refreshUserRepository
	SessionManager refreshSessionRotator
	JWTConfig      config.JWTConfig
}

// RefreshService is the interface exposed to the controller.
type RefreshService interface {
	Refresh(ctx context.Context, input RefreshInput) (*SessionResponse, error)
}

// NewRefreshService constructs the service.
func NewRefreshService(params RefreshServiceParams) (RefreshService, error) {
	if params.UserRepo == nil {
		return nil, errors.New("user repository required")
	}
	if params.SessionManager == nil {
		return nil, errors.New("session manager required")
	}
	return &refreshService{
		users:   params.UserRepo,
		session: params.SessionManager,
		jwtCfg:  params.JWTConfig,
	}, nil
}

// Refresh rotates the refresh session and mints a new access token. The old
// jti's session is deleted, so a replayed pair fails on the next attempt. The
// role claim is re-read from the user row rather than trusted from the stale
// token.
func (s *refreshService) Refresh(ctx context.Context, input RefreshInput) (*SessionResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, input.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}
	accessID := claims.ID
	if accessID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, accessID, input.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   users.RoleOf(user),
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         users.FromModel(user),
	}, nil
}
