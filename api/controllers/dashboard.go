package controllers

import (
	"net/http"

	"github.com/kiranalabs/merchant-admin-api/api/responses"
	"github.com/kiranalabs/merchant-admin-api/internal/dashboard"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
)

func DashboardOverview(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		overview, err := svc.Overview(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message := overview.Message
		if message == "" {
			message = "dashboard.overview"
		}
		responses.WriteSuccess(w, message, overview.Data)
	}
}
