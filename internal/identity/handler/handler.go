package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kycgate/internal/identity/models"
	"kycgate/internal/platform/middleware"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
)

const maxRegisterBodyBytes = 64 << 10

// Service defines the identity operations the handler depends on.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	GetByID(ctx context.Context, rawID string) (*models.User, error)
}

// Handler serves the user registration and lookup endpoints.
type Handler struct {
	logger *slog.Logger
	users  Service
}

// New creates a new identity Handler.
func New(users Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		users:  users,
	}
}

// Register registers the user routes on r, which is expected to be mounted
// under /api.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.handleRegister)
	r.Get("/users/{userId}", h.handleGetUser)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "Invalid request body"))
		return
	}

	user, err := h.users.Register(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to register user", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, "User registered successfully", models.ToResponse(user))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.users.GetByID(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load user", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "", models.ToResponse(user))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
