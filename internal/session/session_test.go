package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeCache считает вызовы Reset.
type fakeCache struct {
	resets atomic.Int32
}

func (f *fakeCache) Reset() {
	f.resets.Add(1)
}

// mintToken создаёт подписанный JWT для тестов.
// Подпись менеджером не проверяется, ключ произвольный.
func mintToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"id":    "u-1",
		"name":  "Оператор",
		"email": "op@edu.local",
		"role":  role,
		"exp":   jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return token
}

// drainEvents вычитывает накопленные события без блокировки.
func drainEvents(ch <-chan Event) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

// TestManager_Establish проверяет установку сессии из токена.
func TestManager_Establish(t *testing.T) {
	cache := &fakeCache{}
	manager := NewManager(cache, testLogger())

	token := mintToken(t, "librarian", time.Now().Add(time.Hour))

	principal, err := manager.Establish(token)
	if err != nil {
		t.Fatalf("Ошибка Establish: %v", err)
	}

	if principal.ID != "u-1" {
		t.Errorf("ожидался ID=u-1, получен %s", principal.ID)
	}
	if principal.Username != "Оператор" {
		t.Errorf("ожидался Username=Оператор, получен %s", principal.Username)
	}
	if principal.Role != rbac.RoleLibrarian {
		t.Errorf("ожидалась роль librarian, получена %s", principal.Role)
	}
	if cache.resets.Load() != 1 {
		t.Errorf("кэш доступа должен сбрасываться при входе, сбросов: %d", cache.resets.Load())
	}

	got, err := manager.Token(context.Background())
	if err != nil {
		t.Fatalf("Ошибка Token: %v", err)
	}
	if got != token {
		t.Error("Token должен возвращать токен активной сессии")
	}

	if current := manager.Current(); current == nil || current.Role != rbac.RoleLibrarian {
		t.Errorf("Current вернул %v", current)
	}
}

// TestManager_Establish_UnknownRole проверяет отказ для неизвестной роли.
func TestManager_Establish_UnknownRole(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	token := mintToken(t, "superuser", time.Now().Add(time.Hour))

	if _, err := manager.Establish(token); !errors.Is(err, rbac.ErrUnknownRole) {
		t.Fatalf("ожидалась ошибка ErrUnknownRole, получена %v", err)
	}

	// Сессия не должна устанавливаться.
	if _, err := manager.Token(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("ожидалась ошибка ErrNoSession, получена %v", err)
	}
}

// TestManager_Establish_MalformedToken проверяет отказ для мусорного токена.
func TestManager_Establish_MalformedToken(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	if _, err := manager.Establish("не-jwt"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("ожидалась ошибка ErrMalformedToken, получена %v", err)
	}
}

// TestManager_HandleAuthFailure проверяет семантику exactly-once.
func TestManager_HandleAuthFailure(t *testing.T) {
	cache := &fakeCache{}
	manager := NewManager(cache, testLogger())

	if _, err := manager.Establish(mintToken(t, "viewer", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	id, events := manager.Subscribe()
	defer manager.Unsubscribe(id)

	manager.HandleAuthFailure()
	manager.HandleAuthFailure()
	manager.HandleAuthFailure()

	got := drainEvents(events)
	if len(got) != 1 {
		t.Fatalf("ожидалось ровно 1 событие завершения, получено %d", len(got))
	}
	if got[0].Type != EventEnded || got[0].Reason != ReasonAuthFailure {
		t.Errorf("ожидалось ended/auth_failure, получено %s/%s", got[0].Type, got[0].Reason)
	}

	// Сброс при входе + сброс при отзыве. Повторные вызовы не добавляют.
	if cache.resets.Load() != 2 {
		t.Errorf("ожидалось 2 сброса кэша, было %d", cache.resets.Load())
	}

	if _, err := manager.Token(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("после отзыва ожидалась ErrNoSession, получена %v", err)
	}
}

// TestManager_HandleAuthFailure_Concurrent проверяет, что параллельные 401
// порождают ровно одно уведомление.
func TestManager_HandleAuthFailure_Concurrent(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	if _, err := manager.Establish(mintToken(t, "viewer", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	id, events := manager.Subscribe()
	defer manager.Unsubscribe(id)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.HandleAuthFailure()
		}()
	}
	wg.Wait()

	if got := drainEvents(events); len(got) != 1 {
		t.Errorf("ожидалось ровно 1 событие, получено %d", len(got))
	}
}

// TestManager_Logout проверяет выход по инициативе оператора.
func TestManager_Logout(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	if _, err := manager.Establish(mintToken(t, "super_admin", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	id, events := manager.Subscribe()
	defer manager.Unsubscribe(id)

	manager.Logout()
	manager.Logout() // повторный выход — no-op

	got := drainEvents(events)
	if len(got) != 1 {
		t.Fatalf("ожидалось 1 событие, получено %d", len(got))
	}
	if got[0].Reason != ReasonLogout {
		t.Errorf("ожидалась причина logout, получена %s", got[0].Reason)
	}

	if manager.Current() != nil {
		t.Error("после выхода Current должен быть nil")
	}
}

// TestSession_IsExpired проверяет буфер раннего истечения.
func TestSession_IsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{"без exp", time.Time{}, false},
		{"истекает через час", time.Now().Add(time.Hour), false},
		{"истекает через 10 секунд", time.Now().Add(10 * time.Second), true},
		{"уже истёк", time.Now().Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ExpiresAt: tt.expiresAt}
			if got := s.IsExpired(); got != tt.expected {
				t.Errorf("IsExpired() = %v, ожидалось %v", got, tt.expected)
			}
		})
	}
}

// TestManager_Unsubscribe проверяет закрытие канала подписчика.
func TestManager_Unsubscribe(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	id, events := manager.Subscribe()
	manager.Unsubscribe(id)

	if _, ok := <-events; ok {
		t.Error("канал должен быть закрыт после Unsubscribe")
	}
}

// TestManager_SlowSubscriber проверяет, что переполненный подписчик
// не блокирует менеджера.
func TestManager_SlowSubscriber(t *testing.T) {
	manager := NewManager(&fakeCache{}, testLogger())

	id, events := manager.Subscribe()
	defer manager.Unsubscribe(id)

	// Публикуем больше событий, чем вмещает буфер. Никто не читает.
	token := mintToken(t, "viewer", time.Now().Add(time.Hour))
	for i := 0; i < eventBuffer+8; i++ {
		if _, err := manager.Establish(token); err != nil {
			t.Fatal(err)
		}
	}

	if got := drainEvents(events); len(got) > eventBuffer {
		t.Errorf("буфер не должен превышать %d, получено %d", eventBuffer, len(got))
	}
}
