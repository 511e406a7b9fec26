package users

import (
	"net/http"
	"time"

	"github.com/dcastillo/authcore-backend/api/middleware"
	"github.com/dcastillo/authcore-backend/api/responses"
	"github.com/dcastillo/authcore-backend/api/validators"
	"github.com/dcastillo/authcore-backend/internal/accounts"
	pkgerrors "github.com/dcastillo/authcore-backend/pkg/errors"
	"github.com/dcastillo/authcore-backend/pkg/logger"
)

type endpointInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Index describes the user-management endpoints and echoes the caller's
// profile.
func Index(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		user, err := svc.GetUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "User Management API Endpoints", map[string]any{
			"user": user,
			"endpoints": map[string]endpointInfo{
				"changePassword": {
					Method:      http.MethodPost,
					Path:        "/api/user/change-password",
					Description: "Change password while logged in",
				},
				"updateProfile": {
					Method:      http.MethodPut,
					Path:        "/api/user/profile",
					Description: "Update user profile",
				},
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ChangePassword lets an authenticated user rotate their password.
func ChangePassword(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body accounts.ChangePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), userID, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "Password changed successfully", nil)
	}
}

// UpdateProfile applies a partial update to the caller's name fields.
func UpdateProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body accounts.UpdateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpdateProfile(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "Profile updated successfully", map[string]any{"user": user})
	}
}
