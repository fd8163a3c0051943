package attribution

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// Handler serves the tracking redirect and the sales webhook.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("attribution: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Track handles GET /track/{slug}.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	target, err := h.service.RecordClick(r.Context(), slug, ClickMeta{
		UserAgent: r.UserAgent(),
		IP:        ClientIP(r),
		Email:     r.URL.Query().Get("email"),
	})
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			http.Error(w, "Offer not found", http.StatusNotFound)
			return
		}
		h.logger.Error("track failed", "slug", slug, "error", err)
		http.Error(w, "Error processing request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}

// SalesWebhook handles POST /functions/sales-webhook.
func (h *Handler) SalesWebhook(w http.ResponseWriter, r *http.Request) {
	var report SaleReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Invalid request body"})
		return
	}

	result, err := h.service.RecordSale(r.Context(), report)
	if err != nil {
		h.logger.Error("sales webhook failed", "offer_slug", report.OfferSlug, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": publicError(err)})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"sale_id":        result.SaleID,
		"commission_due": result.CommissionDue,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
