package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/api/middleware"
	"github.com/griffinshaw/dealbrief-backend/api/responses"
	"github.com/griffinshaw/dealbrief-backend/api/validators"
	bountysvc "github.com/griffinshaw/dealbrief-backend/internal/bounties"
	"github.com/griffinshaw/dealbrief-backend/internal/exchange"
	reportsvc "github.com/griffinshaw/dealbrief-backend/internal/reports"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

// multipartFormOverhead leaves room for the address field and part headers
// on top of the PDF itself when capping the request body.
const multipartFormOverhead = 64 << 10

const multipartMemoryLimit = 8 << 20

type uploadReportResponse struct {
	Report          *reportsvc.ReportDTO `json:"report"`
	RewardCredits   int                  `json:"reward_credits"`
	FulfilledBounty *bountysvc.BountyDTO `json:"fulfilled_bounty,omitempty"`
	Warning         string               `json:"warning,omitempty"`
}

type downloadReportResponse struct {
	Report      *reportsvc.ReportDTO `json:"report"`
	URL         string               `json:"url"`
	Charged     bool                 `json:"charged"`
	CreditSpent int                  `json:"credit_spent"`
}

type reportPageResponse struct {
	Items  []*reportsvc.ReportDTO `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
}

// UploadReport accepts a multipart PDF submission and runs the full upload
// workflow: dedup, battlecard analysis, storage, reward credit, bounty match.
func UploadReport(svc exchange.Service, uploadCfg config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exchange service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, uploadCfg.MaxUploadBytes()+multipartFormOverhead)
		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the upload size limit"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed multipart body"))
			return
		}

		address := strings.TrimSpace(r.FormValue("property_address"))
		if address == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "property_address is required"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload"))
			return
		}

		result, err := svc.Upload(r.Context(), exchange.UploadInput{
			OwnerUserID:     uid,
			PropertyAddress: address,
			FileName:        header.Filename,
			Data:            data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, uploadReportResponse{
			Report:          reportsvc.FromModel(result.Report),
			RewardCredits:   result.RewardCredits,
			FulfilledBounty: bountysvc.FromModel(result.FulfilledBounty),
			Warning:         result.Warning,
		})
	}
}

// ListMyReports returns the authenticated user's uploads, newest first.
func ListMyReports(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
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

		page, err := svc.ListByOwner(r.Context(), uid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reportPageResponse{
			Items:  reportsvc.FromModels(page.Reports),
			Cursor: page.NextCursor,
		})
	}
}

// GetReport returns one report's marketplace view. Private reports are only
// visible to their owner and to admins.
func GetReport(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := routeUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.GetByID(r.Context(), reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !report.IsPublic && report.OwnerUserID != uid && !isAdmin(r) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "report not found"))
			return
		}

		responses.WriteSuccess(w, reportsvc.FromModel(report))
	}
}

// DownloadReport charges the buyer (unless owner or repeat) and returns a
// signed URL for the file.
func DownloadReport(svc exchange.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exchange service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := routeUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Download(r.Context(), uid, reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, downloadReportResponse{
			Report:      reportsvc.FromModel(result.Report),
			URL:         result.URL,
			Charged:     result.Charged,
			CreditSpent: result.CreditSpent,
		})
	}
}

// ReportFileURL re-issues a signed URL for a report the user already has
// access to, without charging again.
func ReportFileURL(svc exchange.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exchange service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := routeUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.FileURL(r.Context(), uid, reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

// DeleteReport removes a report and its stored file. Owners delete their own
// uploads; the admin route reuses this handler with the role claim deciding.
func DeleteReport(svc exchange.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exchange service unavailable"))
			return
		}

		uid, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := routeUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), uid, requesterRole(r), reportID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// PublicSearchReports serves the unauthenticated marketplace browse: address
// substring search over public reports, battlecard previews included.
func PublicSearchReports(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("query"))

		page, err := svc.Search(r.Context(), query, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reportPageResponse{
			Items:  reportsvc.FromModels(page.Reports),
			Cursor: page.NextCursor,
		})
	}
}

func requesterID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	uid, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return uid, nil
}

func requesterRole(r *http.Request) enums.MemberRole {
	role, err := enums.ParseMemberRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return enums.MemberRoleMember
	}
	return role
}

func isAdmin(r *http.Request) bool {
	return requesterRole(r) == enums.MemberRoleAdmin
}

func routeUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
