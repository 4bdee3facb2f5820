package controllers

import (
	"net/http"
	"strings"

	"github.com/griffinshaw/dealbrief-backend/api/responses"
	"github.com/griffinshaw/dealbrief-backend/api/validators"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
)

// PublicValidateBody mirrors the bounty form so clients can pre-flight it
// before authenticating.
type PublicValidateBody struct {
	PropertyAddress string `json:"property_address" validate:"required,min=3,max=256"`
	StakedCredits   int    `json:"staked_credits" validate:"omitempty,min=1"`
}

// PublicValidate checks a prospective bounty payload without creating
// anything. The response echoes the address the matcher would use.
func PublicValidate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body PublicValidateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address := strings.TrimSpace(validators.SanitizeString(body.PropertyAddress, 256))

		responses.WriteSuccess(w, map[string]any{
			"property_address": address,
			"staked_credits":   body.StakedCredits,
			"valid":            true,
		})
	}
}
