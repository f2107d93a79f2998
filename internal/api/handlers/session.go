// session.go — обработчики /api/v1/session.
// POST — вход оператора (аутентификация в REST API Edustore),
// GET — текущая сессия, DELETE — выход.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/arturkryukov/edustore/admin-client/internal/api/errors"
	"github.com/arturkryukov/edustore/admin-client/internal/esclient"
	"github.com/arturkryukov/edustore/admin-client/internal/session"
)

// loginRequest — тело POST /api/v1/session.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse — представление сессии оператора.
type sessionResponse struct {
	Principal session.Principal `json:"principal"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Expired   bool              `json:"expired"`
}

// Login — POST /api/v1/session.
// Аутентифицирует оператора в REST API Edustore и устанавливает локальную
// сессию из полученного токена. Подпись токена локально не проверяется:
// сервер — единственный источник истины о его валидности.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля email и password обязательны")
		return
	}

	result, err := h.client.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *esclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == esclient.KindAuth {
			apierrors.Unauthorized(w, "Неверные учётные данные")
			return
		}
		h.logger.Error("Вход не выполнен", slog.String("error", err.Error()))
		h.writeServiceError(w, err)
		return
	}

	principal, err := h.sessions.Establish(result.Token)
	if err != nil {
		// Сервер вернул токен, который фасад не может принять:
		// неизвестная роль или некорректная структура claims.
		h.logger.Error("Токен сервера отклонён", slog.String("error", err.Error()))
		apierrors.Forbidden(w, "Сессия отклонена: "+err.Error())
		return
	}

	resp := sessionResponse{Principal: *principal}
	if snap := h.sessions.Snapshot(); snap != nil && !snap.ExpiresAt.IsZero() {
		expires := snap.ExpiresAt
		resp.ExpiresAt = &expires
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetSession — GET /api/v1/session.
// Возвращает текущую сессию оператора, 401 — если сессии нет.
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Snapshot()
	if snap == nil {
		apierrors.Unauthorized(w, "Нет активной сессии")
		return
	}

	resp := sessionResponse{
		Principal: snap.Principal,
		Expired:   snap.IsExpired(),
	}
	if !snap.ExpiresAt.IsZero() {
		expires := snap.ExpiresAt
		resp.ExpiresAt = &expires
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout — DELETE /api/v1/session.
// Завершает сессию и сбрасывает коллекции. Повторный вызов безопасен.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	h.stores.DropAll()
	w.WriteHeader(http.StatusNoContent)
}
