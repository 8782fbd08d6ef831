package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"kycgate/internal/kyc/models"
	"kycgate/internal/platform/middleware"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
)

const (
	formField = "document"
	// multipartOverhead leaves room for boundaries and part headers around
	// a maximum-size file.
	multipartOverhead = 1 << 20
	// Parts larger than this spill to temp files during parsing.
	multipartMemory = 8 << 20
)

const (
	msgNoDocument  = "No document uploaded"
	msgTooLarge    = "Document exceeds the maximum allowed size"
	msgUnsupported = "Only PDF, JPG, and PNG documents are allowed"
	msgUploaded    = "Document uploaded successfully. Verification in progress."
)

var allowedTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Service defines the verification operations the handler depends on.
type Service interface {
	UploadDocument(ctx context.Context, rawUserID string, upload models.Upload) (*models.Document, error)
	GetStatus(ctx context.Context, rawUserID string) (*models.Status, error)
}

// Handler serves document upload and status polling.
type Handler struct {
	logger         *slog.Logger
	kyc            Service
	maxUploadBytes int64
}

func New(kyc Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		kyc:            kyc,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the KYC routes on r, which is expected to be mounted
// under /api.
func (h *Handler) Register(r chi.Router) {
	r.Post("/kyc/{userId}", h.handleUpload)
	r.Get("/kyc/{userId}", h.handleStatus)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	upload, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid kyc upload",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.kyc.UploadDocument(ctx, chi.URLParam(r, "userId"), upload)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to accept kyc document", err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, msgUploaded, models.ToUploadResponse(doc))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := h.kyc.GetStatus(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load kyc status", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "", models.ToStatusResponse(st))
}

// readUpload extracts the single document part. Client paths are reduced to
// their base name; the stored name is generated by the service.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (models.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return models.Upload{}, dErrors.New(dErrors.CodeValidation, msgTooLarge)
		}
		return models.Upload{}, dErrors.Wrap(err, dErrors.CodeValidation, msgNoDocument)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(formField)
	if err != nil {
		return models.Upload{}, dErrors.Wrap(err, dErrors.CodeValidation, msgNoDocument)
	}
	defer file.Close()

	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	contentType, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return models.Upload{}, dErrors.New(dErrors.CodeValidation, msgUnsupported)
	}
	if header.Size > h.maxUploadBytes {
		return models.Upload{}, dErrors.New(dErrors.CodeValidation, msgTooLarge)
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return models.Upload{}, dErrors.Wrap(err, dErrors.CodeValidation, msgNoDocument)
	}
	if int64(len(content)) > h.maxUploadBytes {
		return models.Upload{}, dErrors.New(dErrors.CodeValidation, msgTooLarge)
	}

	return models.Upload{
		Content:      content,
		OriginalName: name,
		ContentType:  contentType,
	}, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
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
