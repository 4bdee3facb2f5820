package controllers

import (
	"net/http"

	"github.com/griffinshaw/dealbrief-backend/api/middleware"
	"github.com/griffinshaw/dealbrief-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if uid := middleware.UserIDFromContext(r.Context()); uid != "" {
			payload["user_id"] = uid
		}
		responses.WriteSuccess(w, payload)
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if uid := middleware.UserIDFromContext(r.Context()); uid != "" {
			payload["user_id"] = uid
		}
		responses.WriteSuccess(w, payload)
	}
}
