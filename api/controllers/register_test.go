package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/internal/auth"
	"github.com/griffinshaw/dealbrief-backend/internal/users"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
)

type stubRegisterService struct {
	resp *auth.RegisterResponse
	err  error
	last auth.RegisterRequest
}

func (s *stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	s.last = req
	return s.resp, s.err
}

type stubAdminRegisterService struct {
	user *users.UserDTO
	err  error
}

func (s stubAdminRegisterService) Register(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	return s.user, s.err
}

func TestAuthRegisterSuccess(t *testing.T) {
	user := &users.UserDTO{ID: uuid.New(), Email: "alice@example.com", Role: "member"}
	svc := &stubRegisterService{resp: &auth.RegisterResponse{User: user, SignupBonus: 25}}
	handler := AuthRegister(svc, nil)

	body := []byte(`{
		"first_name": "Alice",
		"last_name": "Nguyen",
		"email": "alice@example.com",
		"password": "Secret123!"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", respRec.Code)
	}
	if svc.last.Email != "alice@example.com" {
		t.Fatalf("expected email forwarded got %q", svc.last.Email)
	}

	var envelope struct {
		Data struct {
			User        *users.UserDTO `json:"user"`
			SignupBonus int            `json:"signup_bonus"`
		} `json:"data"`
	}
	if err := json.NewDecoder(respRec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != user.Email {
		t.Fatalf("expected user in payload got %+v", envelope.Data.User)
	}
	if envelope.Data.SignupBonus != 25 {
		t.Fatalf("expected signup bonus 25 got %d", envelope.Data.SignupBonus)
	}
}

func TestAuthRegisterInvalidPayload(t *testing.T) {
	handler := AuthRegister(&stubRegisterService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(`{"password":"Secret123!"}`)))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", respRec.Code)
	}
}

func TestAuthRegisterPropagatesConflict(t *testing.T) {
	svc := &stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	handler := AuthRegister(svc, nil)

	body := []byte(`{
		"first_name": "Alice",
		"last_name": "Nguyen",
		"email": "alice@example.com",
		"password": "Secret123!"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", respRec.Code)
	}
}

func TestAdminRegisterSuccess(t *testing.T) {
	user := &users.UserDTO{ID: uuid.New(), Email: "admin@example.com", Role: "admin"}
	handler := AdminRegister(stubAdminRegisterService{user: user}, nil)

	body := []byte(`{
		"first_name": "Ada",
		"last_name": "Admin",
		"email": "admin@example.com",
		"password": "Secret123!"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", respRec.Code)
	}

	var envelope struct {
		Data struct {
			User *users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(respRec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Role != "admin" {
		t.Fatalf("expected admin user in payload got %+v", envelope.Data.User)
	}
}
