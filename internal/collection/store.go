// Пакет collection — реактивная коллекция материалов модуля.
//
// Хранит упорядоченный id-уникальный список ресурсов, известных клиенту,
// и публикует события изменений подписчикам (SSE-поток фасада).
// Коллекция отражает только подтверждённые сервером исходы: никаких
// оптимистичных мутаций до ответа сети.
//
// Не персистентная: при рестарте наполняется через Refresh.
package collection

import (
	"log/slog"
	"sync"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// Размер буфера канала событий подписчика.
const eventBuffer = 32

// EventType — тип события коллекции.
type EventType string

const (
	// EventAdded — ресурс добавлен с вложением.
	EventAdded EventType = "added"
	// EventDegraded — ресурс добавлен без вложения (частичный сбой).
	EventDegraded EventType = "degraded"
	// EventUpgraded — деградированный ресурс получил вложение.
	EventUpgraded EventType = "upgraded"
	// EventRemoved — ресурс удалён.
	EventRemoved EventType = "removed"
	// EventReplaced — содержимое заменено целиком (обновление с сервера).
	EventReplaced EventType = "replaced"
	// EventCleared — коллекция очищена.
	EventCleared EventType = "cleared"
)

// Event — событие изменения коллекции.
type Event struct {
	// Type — тип изменения.
	Type EventType `json:"type"`
	// Module — модуль-владелец коллекции.
	Module rbac.Module `json:"module"`
	// Resource — затронутый ресурс (копия), nil для replaced/cleared.
	Resource *model.Resource `json:"resource,omitempty"`
	// ID — идентификатор затронутого ресурса.
	ID string `json:"id,omitempty"`
	// Count — размер коллекции после изменения.
	Count int `json:"count"`
}

// Store — потокобезопасная упорядоченная коллекция ресурсов одного модуля.
// Порядок вставки сохраняется: завершившиеся операции добавляют в хвост.
// Идентификаторы уникальны.
type Store struct {
	mu     sync.RWMutex
	module rbac.Module
	order  []string
	byID   map[string]*model.Resource
	closed bool
	logger *slog.Logger

	subscribers map[int]chan Event
	nextSubID   int
}

// New создаёт пустую коллекцию модуля.
func New(module rbac.Module, logger *slog.Logger) *Store {
	return &Store{
		module:      module,
		byID:        make(map[string]*model.Resource),
		logger:      logger.With(slog.String("component", "collection"), slog.String("module", string(module))),
		subscribers: make(map[int]chan Event),
	}
}

// Module возвращает модуль-владелец коллекции.
func (s *Store) Module() rbac.Module {
	return s.module
}

// Len возвращает размер коллекции.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot возвращает копию коллекции в порядке вставки.
// Читатели никогда не видят внутренних структур.
func (s *Store) Snapshot() []*model.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Resource, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.byID[id].Clone())
	}
	return result
}

// Get возвращает копию ресурса по идентификатору.
func (s *Store) Get(id string) (*model.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

// Append добавляет ресурс в хвост коллекции.
// Повторный идентификатор заменяет существующую запись на её позиции.
// Тип события определяется состоянием вложения: added либо degraded.
func (s *Store) Append(res *model.Resource) {
	clone := res.Clone()

	s.mu.Lock()
	if _, exists := s.byID[clone.ID]; !exists {
		s.order = append(s.order, clone.ID)
	}
	s.byID[clone.ID] = clone
	count := len(s.order)
	s.mu.Unlock()

	eventType := EventAdded
	if clone.Degraded() {
		eventType = EventDegraded
	}

	s.logger.Debug("ресурс добавлен в коллекцию",
		slog.String("id", clone.ID),
		slog.String("event", string(eventType)),
	)
	s.publish(Event{Type: eventType, Module: s.module, Resource: clone.Clone(), ID: clone.ID, Count: count})
}

// Upgrade присоединяет вложение к деградированному ресурсу.
// Позиция записи сохраняется. Возвращает false, если ресурс отсутствует.
func (s *Store) Upgrade(id string, att model.Attachment) bool {
	s.mu.Lock()
	res, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	res.Attachment = att
	clone := res.Clone()
	count := len(s.order)
	s.mu.Unlock()

	s.logger.Debug("вложение присоединено", slog.String("id", id))
	s.publish(Event{Type: EventUpgraded, Module: s.module, Resource: clone, ID: id, Count: count})
	return true
}

// Remove удаляет ресурс по идентификатору. Идемпотентна:
// отсутствующий идентификатор — no-op без события.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	count := len(s.order)
	s.mu.Unlock()

	s.logger.Debug("ресурс удалён из коллекции", slog.String("id", id))
	s.publish(Event{Type: EventRemoved, Module: s.module, ID: id, Count: count})
	return true
}

// ReplaceAll заменяет содержимое коллекции списком с сервера.
// Повторные идентификаторы схлопываются: остаётся первое вхождение.
func (s *Store) ReplaceAll(resources []*model.Resource) {
	byID := make(map[string]*model.Resource, len(resources))
	order := make([]string, 0, len(resources))
	for _, res := range resources {
		if _, seen := byID[res.ID]; seen {
			continue
		}
		clone := res.Clone()
		byID[clone.ID] = clone
		order = append(order, clone.ID)
	}

	s.mu.Lock()
	s.byID = byID
	s.order = order
	count := len(order)
	s.mu.Unlock()

	s.logger.Debug("коллекция заменена", slog.Int("count", count))
	s.publish(Event{Type: EventReplaced, Module: s.module, Count: count})
}

// Clear очищает коллекцию.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byID = make(map[string]*model.Resource)
	s.order = nil
	s.mu.Unlock()

	s.publish(Event{Type: EventCleared, Module: s.module, Count: 0})
}

// Subscribe регистрирует подписчика на события коллекции.
func (s *Store) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, eventBuffer)
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe снимает подписку и закрывает её канал.
func (s *Store) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

// Close закрывает все подписки. Дальнейшие события не публикуются.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// publish рассылает событие без блокировки: медленный подписчик
// теряет событие, но не задерживает мутатора.
func (s *Store) publish(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
