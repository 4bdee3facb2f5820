package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/griffinshaw/dealbrief-backend/pkg/auth"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "dealbrief",
		ExpirationMinutes: 30,
	}
}

func TestServiceLoginMemberIssuesSession(t *testing.T) {
	password := "member-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "member@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Morgan",
		LastName:     "Wells",
		IsActive:     true,
	}
	cfg := testJWTConfig()

	svc, sessions, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    " Member@Example.COM ",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user claim %s, got %s", user.ID, claims.UserID)
	}
	if claims.Role != enums.MemberRoleMember {
		t.Fatalf("expected member role claim, got %s", claims.Role)
	}
	if len(sessions.generatedFor) != 1 || sessions.generatedFor[0] != claims.ID {
		t.Fatalf("expected session stored under jti %q, got %v", claims.ID, sessions.generatedFor)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("expected refresh token to be set")
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.User == nil || resp.User.Role != enums.MemberRoleMember.String() {
		t.Fatalf("expected member user in response, got %+v", resp.User)
	}
}

func TestServiceLoginAdminSystemRole(t *testing.T) {
	password := "admin-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "admin@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Ari",
		LastName:     "Okafor",
		IsActive:     true,
		SystemRole:   strPtr("admin"),
	}
	cfg := testJWTConfig()

	svc, _, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.MemberRoleAdmin {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
}

func TestServiceLoginRejections(t *testing.T) {
	password := "right-password"
	cases := []struct {
		name     string
		user     *models.User
		findErr  error
		email    string
		password string
	}{
		{
			name: "wrong password",
			user: &models.User{
				ID:       uuid.New(),
				Email:    "member@example.com",
				IsActive: true,
			},
			email:    "member@example.com",
			password: "wrong-password",
		},
		{
			name: "inactive user",
			user: &models.User{
				ID:       uuid.New(),
				Email:    "inactive@example.com",
				IsActive: false,
			},
			email:    "inactive@example.com",
			password: password,
		},
		{
			name:     "unknown email",
			findErr:  gorm.ErrRecordNotFound,
			email:    "ghost@example.com",
			password: password,
		},
		{
			name:     "blank email",
			email:    "   ",
			password: password,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.user != nil {
				tc.user.PasswordHash = mustHashPassword(t, password)
			}
			svc, err := NewService(ServiceParams{
				UserRepo:       stubUserRepo{user: tc.user, err: tc.findErr},
				SessionManager: &stubSessionManager{refreshToken: "refresh-token"},
				JWTConfig:      testJWTConfig(),
			})
			if err != nil {
				t.Fatalf("build service: %v", err)
			}

			_, loginErr := svc.Login(context.Background(), LoginRequest{
				Email:    tc.email,
				Password: tc.password,
			})
			if loginErr == nil {
				t.Fatalf("expected login to fail")
			}
			typed := pkgerrors.As(loginErr)
			if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
				t.Fatalf("expected unauthorized error, got %v", loginErr)
			}
			if typed.Error() != invalidCredentialsMessage {
				t.Fatalf("expected uniform message, got %q", typed.Error())
			}
		})
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{},
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.Logout(context.Background(), "access-id"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-id" {
		t.Fatalf("expected session revocation, got %v", sessions.revoked)
	}

	err = svc.Logout(context.Background(), "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for blank access id, got %v", err)
	}
}

func buildTestService(user *models.User, jwtCfg config.JWTConfig) (Service, *stubSessionManager, error) {
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessionMgr,
		JWTConfig:      jwtCfg,
	})
	return svc, sessionMgr, err
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func strPtr(value string) *string {
	return &value
}

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generatedFor []string
	revoked      []string

	rotatedAccessID string
	rotatedNewID    string
	rotatedProvided string
	rotateErr       error
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.generatedFor = append(s.generatedFor, accessID)
	return s.refreshToken, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	s.rotatedAccessID = oldAccessID
	s.rotatedProvided = provided
	if s.rotatedNewID == "" {
		s.rotatedNewID = "rotated-access-id"
	}
	return s.rotatedNewID, "rotated-refresh-token", nil
}
