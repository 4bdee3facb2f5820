package controllers

import (
	"net/http"
	"strings"

	"github.com/griffinshaw/dealbrief-backend/api/responses"
	"github.com/griffinshaw/dealbrief-backend/api/validators"
	bountysvc "github.com/griffinshaw/dealbrief-backend/internal/bounties"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
)

type createBountyRequest struct {
	PropertyAddress string `json:"property_address" validate:"required,min=3"`
	StakedCredits   int    `json:"staked_credits" validate:"required,min=1"`
}

type bountyPageResponse struct {
	Items  []*bountysvc.BountyDTO `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
}

// CreateBounty stakes credits on a request for a report about a property.
// The stake leaves the requester's balance immediately.
func CreateBounty(svc bountysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bounty service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createBountyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bounty, err := svc.Create(r.Context(), bountysvc.CreateBountyInput{
			RequesterUserID: uid,
			PropertyAddress: strings.TrimSpace(body.PropertyAddress),
			StakedCredits:   body.StakedCredits,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, bountysvc.FromModel(bounty))
	}
}

// ListMyBounties returns the authenticated user's bounties in every state,
// newest first.
func ListMyBounties(svc bountysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bounty service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByRequester(r.Context(), uid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bountyPageResponse{
			Items:  bountysvc.FromModels(page.Bounties),
			Cursor: page.NextCursor,
		})
	}
}

// ListOpenBounties lets uploaders browse open bounties, optionally filtered
// by address substring, so they know which reports are in demand.
func ListOpenBounties(svc bountysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bounty service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address := strings.TrimSpace(r.URL.Query().Get("address"))

		page, err := svc.ListOpen(r.Context(), address, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bountyPageResponse{
			Items:  bountysvc.FromModels(page.Bounties),
			Cursor: page.NextCursor,
		})
	}
}

// CancelBounty voids an open bounty and refunds the stake to its requester.
func CancelBounty(svc bountysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bounty service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bountyID, err := routeUUID(r, "bountyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bounty, err := svc.Cancel(r.Context(), bountyID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bountysvc.FromModel(bounty))
	}
}
