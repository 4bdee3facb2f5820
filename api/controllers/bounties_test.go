package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	bountysvc "github.com/griffinshaw/dealbrief-backend/internal/bounties"
	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

type testBountiesService struct {
	createFn          func(ctx context.Context, input bountysvc.CreateBountyInput) (*models.Bounty, error)
	cancelFn          func(ctx context.Context, bountyID, requesterUserID uuid.UUID) (*models.Bounty, error)
	listByRequesterFn func(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*bountysvc.BountyPage, error)
	listOpenFn        func(ctx context.Context, address string, params pagination.Params) (*bountysvc.BountyPage, error)
}

func (s *testBountiesService) Create(ctx context.Context, input bountysvc.CreateBountyInput) (*models.Bounty, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Bounty{}, nil
}

func (s *testBountiesService) Cancel(ctx context.Context, bountyID, requesterUserID uuid.UUID) (*models.Bounty, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, bountyID, requesterUserID)
	}
	return &models.Bounty{}, nil
}

func (s *testBountiesService) Fulfill(ctx context.Context, bountyID, fulfillerUserID, reportID uuid.UUID) (*models.Bounty, error) {
	return nil, nil
}

func (s *testBountiesService) MatchAndFulfill(ctx context.Context, report *models.Report) (*models.Bounty, error) {
	return nil, nil
}

func (s *testBountiesService) GetByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bounty not found")
}

func (s *testBountiesService) ListByRequester(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*bountysvc.BountyPage, error) {
	if s.listByRequesterFn != nil {
		return s.listByRequesterFn(ctx, requesterUserID, params)
	}
	return &bountysvc.BountyPage{}, nil
}

func (s *testBountiesService) ListOpen(ctx context.Context, address string, params pagination.Params) (*bountysvc.BountyPage, error) {
	if s.listOpenFn != nil {
		return s.listOpenFn(ctx, address, params)
	}
	return &bountysvc.BountyPage{}, nil
}

func TestCreateBountySuccess(t *testing.T) {
	userID := uuid.New()
	var got bountysvc.CreateBountyInput
	svc := &testBountiesService{
		createFn: func(ctx context.Context, input bountysvc.CreateBountyInput) (*models.Bounty, error) {
			got = input
			return &models.Bounty{
				ID:              uuid.New(),
				RequesterUserID: input.RequesterUserID,
				PropertyAddress: input.PropertyAddress,
				StakedCredits:   input.StakedCredits,
				Status:          enums.BountyStatusOpen,
			}, nil
		},
	}

	body := []byte(`{"property_address":"44 Oak Ave, Tulsa","staked_credits":8}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, userID)
	rec := httptest.NewRecorder()

	CreateBounty(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if got.RequesterUserID != userID {
		t.Fatalf("expected requester %s got %s", userID, got.RequesterUserID)
	}
	if got.StakedCredits != 8 {
		t.Fatalf("expected stake 8 got %d", got.StakedCredits)
	}

	var envelope struct {
		Data bountysvc.BountyDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.BountyStatusOpen {
		t.Fatalf("expected open status got %s", envelope.Data.Status)
	}
}

func TestCreateBountyRejectsZeroStake(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties", bytes.NewReader([]byte(`{"property_address":"44 Oak Ave","staked_credits":0}`)))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New())
	rec := httptest.NewRecorder()

	CreateBounty(&testBountiesService{}, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCreateBountyInsufficientCredits(t *testing.T) {
	svc := &testBountiesService{
		createFn: func(ctx context.Context, input bountysvc.CreateBountyInput) (*models.Bounty, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredits, "balance too low")
		},
	}

	body := []byte(`{"property_address":"44 Oak Ave, Tulsa","staked_credits":9000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New())
	rec := httptest.NewRecorder()

	CreateBounty(svc, testLogger())(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
}

func TestListOpenBountiesForwardsAddress(t *testing.T) {
	svc := &testBountiesService{
		listOpenFn: func(ctx context.Context, address string, params pagination.Params) (*bountysvc.BountyPage, error) {
			if address != "oak" {
				t.Fatalf("unexpected address filter %q", address)
			}
			return &bountysvc.BountyPage{
				Bounties: []models.Bounty{{ID: uuid.New(), Status: enums.BountyStatusOpen}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bounties/open?address=oak", nil)
	req = authedRequest(req, uuid.New())
	rec := httptest.NewRecorder()

	ListOpenBounties(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data bountyPageResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one bounty got %d", len(envelope.Data.Items))
	}
}

func TestListMyBountiesForwardsRequester(t *testing.T) {
	userID := uuid.New()
	svc := &testBountiesService{
		listByRequesterFn: func(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*bountysvc.BountyPage, error) {
			if requesterUserID != userID {
				t.Fatalf("unexpected requester %s", requesterUserID)
			}
			return &bountysvc.BountyPage{NextCursor: "more"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bounties", nil)
	req = authedRequest(req, userID)
	rec := httptest.NewRecorder()

	ListMyBounties(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCancelBountySuccess(t *testing.T) {
	userID := uuid.New()
	bountyID := uuid.New()
	svc := &testBountiesService{
		cancelFn: func(ctx context.Context, bid, rid uuid.UUID) (*models.Bounty, error) {
			if bid != bountyID || rid != userID {
				t.Fatalf("unexpected args %s %s", bid, rid)
			}
			return &models.Bounty{ID: bountyID, Status: enums.BountyStatusCancelled}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties/"+bountyID.String()+"/cancel", nil)
	req = authedRequest(req, userID)
	req = addRouteParam(req, "bountyId", bountyID.String())
	rec := httptest.NewRecorder()

	CancelBounty(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data bountysvc.BountyDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.BountyStatusCancelled {
		t.Fatalf("expected cancelled got %s", envelope.Data.Status)
	}
}

func TestCancelBountyStateConflict(t *testing.T) {
	svc := &testBountiesService{
		cancelFn: func(ctx context.Context, bid, rid uuid.UUID) (*models.Bounty, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bounty is not open")
		},
	}

	bountyID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties/"+bountyID.String()+"/cancel", nil)
	req = authedRequest(req, uuid.New())
	req = addRouteParam(req, "bountyId", bountyID.String())
	rec := httptest.NewRecorder()

	CancelBounty(svc, testLogger())(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}
