package api

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

// HandleGetConfig godoc
// @Summary Get the pricing configuration
// @Tags config
// @Produce json
// @Success 200 {object} ConfigResponse "Current configuration"
// @Router /config [get]
func HandleGetConfig(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toConfigResponse(svc.Config()))
	}
}

// HandleUpdateConfig godoc
// @Summary Update the pricing configuration
// @Description Merges the given fields into the configuration. Omitted fields are unchanged. A new refresh interval restarts the scheduler; other fields apply from the next cycle.
// @Tags config
// @Accept json
// @Produce json
// @Param request body rate.ConfigUpdate true "Fields to change"
// @Success 200 {object} ConfigResponse "Updated configuration"
// @Failure 400 {object} ErrorResponse "Invalid configuration"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /config [patch]
func HandleUpdateConfig(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update rate.ConfigUpdate
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&update); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
			return
		}

		cfg, err := svc.UpdateConfig(r.Context(), update)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidConfig):
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}
		writeJSON(w, http.StatusOK, toConfigResponse(cfg))
	}
}
