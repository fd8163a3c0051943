package coach

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// Handler serves the create-coach function.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("coach: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateCoach handles POST /functions/create-coach.
func (h *Handler) CreateCoach(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	if _, err := h.service.Authorize(r.Context(), token); err != nil {
		if errors.Is(err, ErrForbidden) {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "Admin access required"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	var req ProvisionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	coachID, err := h.service.Provision(r.Context(), req)
	if err != nil {
		h.logger.Error("create coach failed", "email", req.Email, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": provisionMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "coach_id": coachID})
}

func provisionMessage(err error) string {
	if errors.Is(err, ErrMissingFields) {
		return "Missing required fields"
	}
	var idErr *IdentityError
	if errors.As(err, &idErr) {
		return idErr.Message
	}
	return "Failed to create coach profile"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
