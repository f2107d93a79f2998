// handler.go — основной обработчик REST API админ-клиента.
// Объединяет все сервисы и делегирует запросы в сервисный слой.
// Обработчики тонкие: разбор запроса, вызов конвейера, маппинг исхода
// в HTTP-статус и тело ответа.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/edustore/admin-client/internal/api/errors"
	"github.com/arturkryukov/edustore/admin-client/internal/collection"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/filecheck"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
	"github.com/arturkryukov/edustore/admin-client/internal/esclient"
	"github.com/arturkryukov/edustore/admin-client/internal/service"
	"github.com/arturkryukov/edustore/admin-client/internal/session"
)

// APIHandler — основной обработчик REST API админ-клиента.
type APIHandler struct {
	health       *HealthHandler
	pipeline     *service.SubmitService
	directories  *service.DirectoryService
	sessions     *session.Manager
	client       *esclient.Client
	stores       *collection.Set
	sseKeepalive time.Duration
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// sseKeepalive — интервал keepalive-комментариев SSE (AC_SSE_KEEPALIVE).
func NewAPIHandler(
	health *HealthHandler,
	pipeline *service.SubmitService,
	directories *service.DirectoryService,
	sessions *session.Manager,
	client *esclient.Client,
	stores *collection.Set,
	sseKeepalive time.Duration,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:       health,
		pipeline:     pipeline,
		directories:  directories,
		sessions:     sessions,
		client:       client,
		stores:       stores,
		sseKeepalive: sseKeepalive,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// resourceListResponse — ответ списочных endpoints каталога.
type resourceListResponse struct {
	Items []*model.Resource `json:"items"`
	Count int               `json:"count"`
}

// attachResponse — ответ успешной досылки вложения.
// Resource заполнен, если запись есть в локальной коллекции.
type attachResponse struct {
	ResourceID string          `json:"resource_id"`
	Resource   *model.Resource `json:"resource,omitempty"`
}

// maxMultipartMemory — буфер разбора multipart-формы в памяти,
// более крупные части уходят во временные файлы.
const maxMultipartMemory = 32 << 20

// writeJSON сериализует data в JSON и отправляет ответ со статусом status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// submissionKey — ключ отправки из заголовка X-Submission-Token.
// Если клиент ключ не передал, генерируется новый: защита от дублей
// между повторами запроса в этом случае не действует.
func submissionKey(r *http.Request) string {
	if key := r.Header.Get("X-Submission-Token"); key != "" {
		return key
	}
	return uuid.New().String()
}

// formCandidate извлекает файловую часть field из multipart-формы.
// nil без ошибки — часть отсутствует.
func formCandidate(r *http.Request, field string) (*filecheck.Candidate, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}
	cand := &filecheck.Candidate{
		Name:      header.Filename,
		SizeBytes: header.Size,
		Content:   file,
	}
	return cand, func() { _ = file.Close() }, nil
}

// writeSubmitOutcome преобразует исход отправки ресурса в HTTP-ответ.
// Complete — 201 с созданной записью; остальные исходы — ошибки фасада.
func (h *APIHandler) writeSubmitOutcome(w http.ResponseWriter, result *service.SubmitResult) {
	switch result.Outcome {
	case service.OutcomeComplete:
		writeJSON(w, http.StatusCreated, result.Resource)
	case service.OutcomePartialFailure:
		apierrors.PartialFailure(w, result.Message, result.ResourceID)
	default:
		h.writeFailedOutcome(w, result)
	}
}

// writeAttachOutcome преобразует исход досылки вложения в HTTP-ответ.
// Complete — 200 с обновлённой записью из коллекции.
func (h *APIHandler) writeAttachOutcome(w http.ResponseWriter, module rbac.Module, result *service.SubmitResult) {
	switch result.Outcome {
	case service.OutcomeComplete:
		resp := attachResponse{ResourceID: result.ResourceID}
		if res, ok := h.stores.Get(module).Get(result.ResourceID); ok {
			resp.Resource = res
		}
		writeJSON(w, http.StatusOK, resp)
	case service.OutcomePartialFailure:
		apierrors.PartialFailure(w, result.Message, result.ResourceID)
	default:
		h.writeFailedOutcome(w, result)
	}
}

// writeDeleteOutcome преобразует исход удаления в HTTP-ответ.
// Deleted — 204 без тела.
func (h *APIHandler) writeDeleteOutcome(w http.ResponseWriter, result *service.SubmitResult) {
	switch result.Outcome {
	case service.OutcomeDeleted:
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeFailedOutcome(w, result)
	}
}

// writeFailedOutcome — общие неуспешные исходы конвейера.
func (h *APIHandler) writeFailedOutcome(w http.ResponseWriter, result *service.SubmitResult) {
	switch result.Outcome {
	case service.OutcomeDenied:
		apierrors.Forbidden(w, result.Message)
	case service.OutcomeRejected:
		apierrors.FileRejected(w, result.Message, string(result.Reason))
	case service.OutcomeCreationFailed, service.OutcomeDeletionFailed:
		apierrors.APIUnavailable(w, result.Message, result.Status)
	default:
		h.logger.Error("Неизвестный исход конвейера",
			slog.String("outcome", string(result.Outcome)),
		)
		apierrors.InternalError(w, "Неизвестный исход операции")
	}
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *esclient.APIError
	switch {
	case errors.Is(err, service.ErrSubmissionInFlight):
		apierrors.Conflict(w, "Операция с этим ключом отправки уже выполняется")
	case errors.Is(err, service.ErrInvalidDraft),
		errors.Is(err, service.ErrMissingKey),
		errors.Is(err, service.ErrMissingFile),
		errors.Is(err, service.ErrMissingResourceID),
		errors.Is(err, service.ErrUnsupportedModule):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		apierrors.Forbidden(w, err.Error())
	case errors.As(err, &apiErr):
		h.writeGatewayError(w, apiErr)
	default:
		h.logger.Error("Необработанная ошибка сервиса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка админ-клиента")
	}
}

// writeGatewayError преобразует ошибку REST API Edustore в ответ фасада.
func (h *APIHandler) writeGatewayError(w http.ResponseWriter, apiErr *esclient.APIError) {
	switch apiErr.Kind {
	case esclient.KindAuth:
		apierrors.Unauthorized(w, "Сессия отозвана сервером")
	case esclient.KindNotFound:
		apierrors.NotFound(w, apiErr.Message)
	default:
		apierrors.APIUnavailable(w, apiErr.Message, apiErr.Status)
	}
}
