package controllers

import (
	"net/http"
	"strings"

	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/api/validators"
	"github.com/piersideeats/dispatch-backend/internal/incidents"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

// AdminListIncidents pages through incidents with optional status and
// kind filters.
func AdminListIncidents(svc incidents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := incidents.Filters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseIncidentStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, parseErr := enums.ParseIncidentKind(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid kind filter"))
				return
			}
			filters.Kind = &kind
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type resolveIncidentRequest struct {
	Resolution string `json:"resolution" validate:"required,min=3,max=1000"`
}

// AdminResolveIncident closes an open incident with a resolution note.
func AdminResolveIncident(svc incidents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID, err := pathUUID(r, "incidentId", "incident id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveIncidentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		incident, err := svc.Resolve(r.Context(), incidentID, req.Resolution)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, incident)
	}
}
