// events.go — SSE (Server-Sent Events) endpoint /api/v1/events.
// Поток событий фасада в реальном времени: изменения коллекций
// (event: collection) и жизненный цикл сессии (event: session).
// Каждый SSE-клиент обслуживается отдельной горутиной.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/arturkryukov/edustore/admin-client/internal/api/errors"
	"github.com/arturkryukov/edustore/admin-client/internal/api/middleware"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
	"github.com/arturkryukov/edustore/admin-client/internal/session"
)

// Events — GET /api/v1/events.
// Подписывается на события сессии и коллекций каталога и транслирует их
// клиенту. Каждые sseKeepalive отправляется keepalive-комментарий.
// Graceful disconnect при закрытии клиентом соединения (context cancel).
func (h *APIHandler) Events(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		apierrors.Unauthorized(w, "Нет активной сессии")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит оригинальный http.Flusher через Unwrap()
	// обёрнутых middleware ResponseWriter-ов.
	rc := http.NewResponseController(w)

	// Поток живёт дольше WriteTimeout сервера: снимаем дедлайн записи
	// для этого соединения.
	_ = rc.SetWriteDeadline(time.Time{})

	if err := rc.Flush(); err != nil {
		apierrors.InternalError(w, "SSE не поддерживается")
		return
	}

	sessionID, sessionCh := h.sessions.Subscribe()
	defer h.sessions.Unsubscribe(sessionID)

	papers := h.stores.Get(rbac.ModuleQuestionPapers)
	paperID, paperCh := papers.Subscribe()
	defer papers.Unsubscribe(paperID)

	books := h.stores.Get(rbac.ModuleBooks)
	bookID, bookCh := books.Subscribe()
	defer books.Unsubscribe(bookID)

	h.logger.Debug("SSE клиент подключён",
		slog.String("username", principal.Username),
		slog.String("remote_addr", r.RemoteAddr),
	)

	ticker := time.NewTicker(h.sseKeepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Клиент отключился
			h.logger.Debug("SSE клиент отключён",
				slog.String("username", principal.Username),
			)
			return
		case ev, ok := <-sessionCh:
			if !ok {
				return
			}
			h.sendEvent(w, rc, "session", ev)
			if ev.Type == session.EventEnded {
				// Сессия закончилась: поток закрывается, новая сессия
				// откроет новый поток.
				return
			}
		case ev, ok := <-paperCh:
			if !ok {
				return
			}
			h.sendEvent(w, rc, "collection", ev)
		case ev, ok := <-bookCh:
			if !ok {
				return
			}
			h.sendEvent(w, rc, "collection", ev)
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			_ = rc.Flush()
		}
	}
}

// sendEvent сериализует payload и отправляет SSE-событие name.
// Формат SSE: event: {name}\ndata: {json}\n\n
func (h *APIHandler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Ошибка сериализации SSE-события",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	_ = rc.Flush()
}
