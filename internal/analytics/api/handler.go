package analytics_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-analytics/internal/analytics"
	"ms-analytics/internal/attribution"
	"ms-analytics/internal/logger"
	"ms-analytics/internal/passes"
	"ms-analytics/internal/utils"
)

// Handler serves the analytics views and check-in passes over HTTP.
type Handler struct {
	Service *analytics.Service
	Passes  *passes.Generator
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, passGen *passes.Generator, log *logger.Logger) *Handler {
	return &Handler{Service: service, Passes: passGen, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/instances", h.GetInstanceBreakdown)
		r.Get("/instances/{date}/purchases", h.GetInstancePurchases)
		r.Get("/series", h.GetSalesSeries)
	})
	r.Get("/passes/{purchaseID}", h.GetPass)
}

// GetInstanceBreakdown returns the per-instance sales table.
func (h *Handler) GetInstanceBreakdown(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	view, err := h.Service.InstanceBreakdown(r.Context())
	if err != nil {
		h.respondError(w, r, err, "Failed to compute instance breakdown")
		return
	}

	h.logRequest(r, http.StatusOK, start)
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("Instance breakdown", view))
}

// GetSalesSeries returns the chart series; ?bucket=weekly|monthly,
// defaulting to weekly.
func (h *Handler) GetSalesSeries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bucket := attribution.Bucketing(r.URL.Query().Get("bucket"))
	if bucket == "" {
		bucket = attribution.BucketWeekly
	}

	view, err := h.Service.SalesSeries(r.Context(), bucket)
	if err != nil {
		h.respondError(w, r, err, "Failed to compute sales series")
		return
	}

	h.logRequest(r, http.StatusOK, start)
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("Sales series", view))
}

// GetInstancePurchases lists the paid purchases attributed to one
// instance date.
func (h *Handler) GetInstancePurchases(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	date := chi.URLParam(r, "date")

	rows, err := h.Service.InstancePurchases(r.Context(), date)
	if err != nil {
		h.respondError(w, r, err, fmt.Sprintf("Failed to list purchases for %s", date))
		return
	}

	h.logRequest(r, http.StatusOK, start)
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("Attributed purchases", rows))
}

// GetPass renders the encrypted check-in QR for a purchase as PNG.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	purchaseID := chi.URLParam(r, "purchaseID")

	purchase, instance, err := h.Service.AttributedInstance(r.Context(), purchaseID)
	if err != nil {
		h.respondError(w, r, err, fmt.Sprintf("Failed to resolve purchase %s", purchaseID))
		return
	}
	if !purchase.Paid() {
		sendJSONResponse(w, http.StatusConflict, utils.ErrorResponse("Pass unavailable", "purchase is not paid"))
		return
	}

	png, err := h.Passes.GeneratePassQR(*purchase, instance)
	if err != nil {
		h.respondError(w, r, err, "Failed to generate pass")
		return
	}

	h.logRequest(r, http.StatusOK, start)
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, attribution.ErrInvalidArgument) {
		status = http.StatusBadRequest
	}

	if h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	sendJSONResponse(w, status, utils.ErrorResponse(message, err.Error()))
}

func (h *Handler) logRequest(r *http.Request, status int, start time.Time) {
	if h.Logger != nil {
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), time.Since(start).String())
	}
}

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
