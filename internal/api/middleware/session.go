// session.go — middleware сессии оператора.
// Фасад обслуживает одного оператора: аутентификация запроса — это
// наличие живой in-process сессии, а не проверка входящего токена.
// Токен сессии принадлежит шлюзу Edustore API и наружу не выдаётся.
package middleware

import (
	"context"
	"net/http"

	apierrors "github.com/arturkryukov/edustore/admin-client/internal/api/errors"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
	"github.com/arturkryukov/edustore/admin-client/internal/session"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — аутентифицированный оператор в контексте запроса.
const ContextKeyPrincipal contextKey = "principal"

// SessionAuth — middleware, требующий живую сессию оператора.
type SessionAuth struct {
	sessions *session.Manager
}

// NewSessionAuth создаёт middleware сессии.
func NewSessionAuth(sessions *session.Manager) *SessionAuth {
	return &SessionAuth{sessions: sessions}
}

// Middleware возвращает HTTP middleware: запрос без живой сессии
// отклоняется с 401, иначе Principal помещается в контекст.
func (s *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := s.sessions.Current()
			if principal == nil {
				apierrors.Unauthorized(w, "Нет активной сессии")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil, если сессия не прошла через middleware.
func PrincipalFromContext(ctx context.Context) *session.Principal {
	principal, _ := ctx.Value(ContextKeyPrincipal).(*session.Principal)
	return principal
}

// RoleFromContext извлекает роль оператора из контекста запроса.
// Возвращает RoleNone, если Principal не найден.
func RoleFromContext(ctx context.Context) rbac.Role {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return rbac.RoleNone
	}
	return principal.Role
}
