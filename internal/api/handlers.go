package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"ratefeed/internal/service"
)

// HandleGetCurrentRate godoc
// @Summary Get the current rate
// @Description Returns the most recently resolved rate with its age and staleness. Does not trigger a fetch.
// @Tags rates
// @Produce json
// @Success 200 {object} RateResponse "Current rate"
// @Failure 404 {object} ErrorResponse "No rate resolved yet"
// @Router /rates/current [get]
func HandleGetCurrentRate(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Current(r.Context())
		if err != nil {
			if errors.Is(err, service.ErrNoRate) {
				writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}
		writeJSON(w, http.StatusOK, toRateResultResponse(res))
	}
}

// HandleGetHistory godoc
// @Summary Get the observation history
// @Description Returns every price observation recorded by the resolver, oldest first.
// @Tags rates
// @Produce json
// @Success 200 {array} ObservationResponse "Observation history"
// @Router /rates/history [get]
func HandleGetHistory(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := svc.History(r.Context())
		out := make([]ObservationResponse, 0, len(history))
		for _, o := range history {
			out = append(out, ObservationResponse{
				Currency:   o.Currency,
				Price:      o.Price,
				Source:     o.Source,
				ObservedAt: formatTime(o.ObservedAt),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleRefresh godoc
// @Summary Force a rate refresh
// @Description Runs one resolution cycle and returns its result. With async=true the refresh is queued and a task id is returned immediately.
// @Tags rates
// @Produce json
// @Param async query bool false "Queue the refresh instead of running it inline"
// @Success 200 {object} RateResponse "Resolved rate"
// @Success 202 {object} RefreshAcceptedResponse "Refresh queued"
// @Failure 400 {object} ErrorResponse "Invalid async flag"
// @Failure 503 {object} ErrorResponse "Async refresh not configured"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /rates/refresh [post]
func HandleRefresh(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		async := false
		if raw := r.URL.Query().Get("async"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "async must be a boolean"})
				return
			}
			async = v
		}

		if !async {
			writeJSON(w, http.StatusOK, toRateResponse(svc.ForceUpdate(r.Context())))
			return
		}

		taskID, err := svc.RequestRefresh(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAsyncDisabled):
				writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}
		writeJSON(w, http.StatusAccepted, RefreshAcceptedResponse{TaskID: taskID})
	}
}

// HandleGetStale godoc
// @Summary Check rate staleness
// @Description Reports whether the current rate is older than the threshold. A missing rate is always stale.
// @Tags rates
// @Produce json
// @Param threshold query number false "Threshold in minutes; the configured default when omitted" minimum(0)
// @Success 200 {object} StaleResponse "Staleness"
// @Failure 400 {object} ErrorResponse "Invalid threshold"
// @Router /rates/stale [get]
func HandleGetStale(svc service.RateServiceInterface, defaultThreshold float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("threshold")
		if raw == "" {
			writeJSON(w, http.StatusOK, StaleResponse{
				Stale:            svc.IsStaleDefault(),
				ThresholdMinutes: defaultThreshold,
				AgeMinutes:       finitePtr(svc.RateAgeMinutes()),
			})
			return
		}

		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || finitePtr(threshold) == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "threshold must be a non-negative number"})
			return
		}

		writeJSON(w, http.StatusOK, StaleResponse{
			Stale:            svc.IsStale(threshold),
			ThresholdMinutes: threshold,
			AgeMinutes:       finitePtr(svc.RateAgeMinutes()),
		})
	}
}

// HandleConvert godoc
// @Summary Convert an amount
// @Description Converts an amount with the current rate, or the fallback rate when none has been resolved. to_target divides by the rate, to_base multiplies.
// @Tags conversion
// @Produce json
// @Param amount query string true "Non-negative decimal amount"
// @Param direction query string true "Conversion direction" Enums(to_target, to_base)
// @Success 200 {object} ConvertResponse "Conversion result"
// @Failure 400 {object} ErrorResponse "Invalid amount or direction"
// @Router /convert [get]
func HandleConvert(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawAmount := r.URL.Query().Get("amount")
		if rawAmount == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "amount is required"})
			return
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "amount must be a decimal number"})
			return
		}

		res, err := svc.Convert(service.ConversionRequest{
			Amount:    amount,
			Direction: service.Direction(r.URL.Query().Get("direction")),
		})
		if err != nil {
			if errors.Is(err, service.ErrInvalidConversion) {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}

		writeJSON(w, http.StatusOK, ConvertResponse{
			Amount:       res.Amount.String(),
			Result:       res.Result.String(),
			From:         res.From,
			To:           res.To,
			Rate:         res.Rate.Rate,
			Source:       res.Rate.Source,
			UsedFallback: res.UsedFallback,
		})
	}
}
