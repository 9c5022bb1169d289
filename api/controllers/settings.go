package controllers

import (
	"net/http"

	"github.com/kiranalabs/merchant-admin-api/api/middleware"
	"github.com/kiranalabs/merchant-admin-api/api/responses"
	"github.com/kiranalabs/merchant-admin-api/api/validators"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
)

func SettingsProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		profile, err := svc.GetProfile(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "settings.profile", profile)
	}
}

func SettingsUpdateProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body users.UpdateProfileInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), actor.ID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "settings.profile_updated", profile)
	}
}

func SettingsChangePassword(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		jti, _ := middleware.JTIFromContext(r.Context())

		var body users.ChangePasswordInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), actor.ID, jti, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "settings.password_changed", nil)
	}
}
