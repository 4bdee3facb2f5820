package controllers

import (
	"net/http"

	"github.com/griffinshaw/dealbrief-backend/api/responses"
	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
)

type creditHistoryResponse struct {
	Entries []*ledger.EntryDTO `json:"entries"`
	Cursor  string             `json:"cursor,omitempty"`
}

// CreditBalance returns the authenticated user's current credit balance,
// summed fresh from the ledger.
func CreditBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{"balance": balance})
	}
}

// CreditStats returns lifetime earned/spent totals alongside the balance.
func CreditStats(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.GetStats(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}

// CreditHistory pages through the user's ledger entries, newest first.
func CreditHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		page, err := svc.ListEntries(r.Context(), uid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, creditHistoryResponse{
			Entries: ledger.EntriesFromModels(page.Entries),
			Cursor:  page.NextCursor,
		})
	}
}
