// Пакет session — страж сессии оператора.
// Процесс обслуживает одного оператора: одна активная сессия с bearer-токеном
// Edustore API. Подпись токена локально не проверяется, сервер — единственный
// авторитет; страж реагирует на отказ авторизации (401) ровно один раз.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// Буфер раннего истечения: сессия считается истёкшей за 30 секунд
// до фактического exp токена.
const expiryBuffer = 30 * time.Second

// Размер буфера канала событий подписчика.
const eventBuffer = 16

// ErrNoSession — активная сессия отсутствует.
var ErrNoSession = errors.New("нет активной сессии")

// ErrMalformedToken — токен не разбирается как JWT.
var ErrMalformedToken = errors.New("некорректный токен сессии")

// sessionInvalidations — счётчик принудительных завершений сессии
// по отказу авторизации сервера.
var sessionInvalidations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ac_session_invalidations_total",
	Help: "Количество сессий, завершённых по отказу авторизации Edustore API.",
})

// Principal — аутентифицированный оператор текущей сессии.
type Principal struct {
	// ID — идентификатор пользователя в Edustore.
	ID string `json:"id"`
	// Username — отображаемое имя.
	Username string `json:"username"`
	// Email — электронная почта.
	Email string `json:"email,omitempty"`
	// Role — роль, определяющая матрицу доступа.
	Role rbac.Role `json:"role"`
}

// Session — активная сессия оператора.
type Session struct {
	// Token — bearer-токен для запросов к Edustore API.
	Token string
	// Principal — владелец сессии.
	Principal Principal
	// ExpiresAt — время истечения токена (нулевое, если exp отсутствует).
	ExpiresAt time.Time
}

// IsExpired проверяет, истёк ли токен сессии.
// Возвращает true, если до истечения менее 30 секунд.
// Проверка консультативная: решение о действительности принимает сервер.
func (s *Session) IsExpired() bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt.Add(-expiryBuffer))
}

// EventType — тип события сессии.
type EventType string

const (
	// EventEstablished — сессия установлена.
	EventEstablished EventType = "established"
	// EventEnded — сессия завершена.
	EventEnded EventType = "ended"
)

// Причины завершения сессии.
const (
	ReasonLogout      = "logout"
	ReasonAuthFailure = "auth_failure"
)

// Event — событие жизненного цикла сессии.
type Event struct {
	Type     EventType `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Username string    `json:"username,omitempty"`
}

// CacheResetter сбрасывает кэш решений доступа при смене сессии.
type CacheResetter interface {
	Reset()
}

// sessionClaims — клеймы токена Edustore API.
type sessionClaims struct {
	jwt.RegisteredClaims
	// UserID — идентификатор пользователя (клейм id).
	UserID string `json:"id,omitempty"`
	// Name — отображаемое имя.
	Name string `json:"name,omitempty"`
	// Email — электронная почта.
	Email string `json:"email,omitempty"`
	// Role — роль пользователя.
	Role string `json:"role"`
}

// Manager — менеджер единственной сессии процесса.
type Manager struct {
	mu      sync.RWMutex
	session *Session

	cache  CacheResetter
	logger *slog.Logger

	subscribers map[int]chan Event
	nextSubID   int
}

// NewManager создаёт менеджер сессий.
func NewManager(cache CacheResetter, logger *slog.Logger) *Manager {
	return &Manager{
		cache:       cache,
		logger:      logger.With(slog.String("component", "session")),
		subscribers: make(map[int]chan Event),
	}
}

// Establish разбирает токен, проверяет роль и устанавливает сессию.
// Неизвестная роль отклоняется: матрица доступа закрыта по умолчанию.
func (m *Manager) Establish(token string) (*Principal, error) {
	claims := &sessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedToken, err)
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("сессия отклонена: %w", err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}

	principal := Principal{
		ID:       id,
		Username: claims.Name,
		Email:    claims.Email,
		Role:     role,
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	m.session = &Session{
		Token:     token,
		Principal: principal,
		ExpiresAt: expiresAt,
	}
	m.mu.Unlock()

	// Решения доступа предыдущей сессии недействительны.
	m.cache.Reset()

	m.logger.Info("сессия установлена",
		slog.String("user", principal.Username),
		slog.String("role", string(principal.Role)),
	)
	m.publish(Event{Type: EventEstablished, Username: principal.Username})

	return &principal, nil
}

// Token возвращает bearer-токен активной сессии.
// Сигнатура совместима с esclient.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return "", ErrNoSession
	}
	return m.session.Token, nil
}

// Current возвращает копию Principal активной сессии или nil.
func (m *Manager) Current() *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil
	}
	principal := m.session.Principal
	return &principal
}

// Snapshot возвращает копию активной сессии или nil.
func (m *Manager) Snapshot() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil
	}
	session := *m.session
	return &session
}

// HandleAuthFailure завершает сессию после отказа авторизации сервера.
// Семантика exactly-once: первый вызов для живой сессии гасит её и
// публикует событие завершения; последующие вызовы для той же мёртвой
// сессии — no-op. Параллельные 401 от конкурентных запросов порождают
// ровно одно уведомление.
func (m *Manager) HandleAuthFailure() {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	username := m.session.Principal.Username
	m.session = nil
	m.mu.Unlock()

	m.cache.Reset()
	sessionInvalidations.Inc()

	m.logger.Warn("сессия отозвана сервером", slog.String("user", username))
	m.publish(Event{Type: EventEnded, Reason: ReasonAuthFailure, Username: username})
}

// Logout завершает сессию по инициативе оператора.
func (m *Manager) Logout() {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	username := m.session.Principal.Username
	m.session = nil
	m.mu.Unlock()

	m.cache.Reset()

	m.logger.Info("выход из сессии", slog.String("user", username))
	m.publish(Event{Type: EventEnded, Reason: ReasonLogout, Username: username})
}

// Subscribe регистрирует подписчика на события сессии.
// Возвращает идентификатор подписки и буферизованный канал.
func (m *Manager) Subscribe() (int, <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Event, eventBuffer)
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe снимает подписку и закрывает её канал.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.subscribers[id]; ok {
		delete(m.subscribers, id)
		close(ch)
	}
}

// publish рассылает событие без блокировки: медленный подписчик
// теряет событие, но не задерживает мутатора.
func (m *Manager) publish(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
