package controllers

import (
	"net/http"

	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/api/validators"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/maps"
)

type routePreviewRequest struct {
	OriginLat      float64 `json:"origin_lat" validate:"gte=-90,lte=90"`
	OriginLng      float64 `json:"origin_lng" validate:"gte=-180,lte=180"`
	DestinationLat float64 `json:"destination_lat" validate:"gte=-90,lte=90"`
	DestinationLng float64 `json:"destination_lng" validate:"gte=-180,lte=180"`
}

type routePreviewResponse struct {
	DistanceMeters  int     `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
}

// AdminRoutePreview looks up a driving route between two points. The
// endpoint is a preview tool only; dispatch and payment math never use
// it.
func AdminRoutePreview(client *maps.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "route lookups are not configured"))
			return
		}

		var req routePreviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		estimate, err := client.ComputeRoute(r.Context(),
			maps.LatLng{Latitude: req.OriginLat, Longitude: req.OriginLng},
			maps.LatLng{Latitude: req.DestinationLat, Longitude: req.DestinationLng},
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, routePreviewResponse{
			DistanceMeters:  estimate.DistanceMeters,
			DurationSeconds: estimate.Duration.Seconds(),
			EncodedPolyline: estimate.EncodedPolyline,
		})
	}
}
