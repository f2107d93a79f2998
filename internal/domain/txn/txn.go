// Пакет txn — конечный автомат двухфазной отправки ресурса.
//
// Жизненный цикл одной отправки:
//
//	not_started → creating → created → uploading → complete
//	                 ↓            ↓          ↓
//	               failed      complete  partial_failure
//
// created → complete — отправка без файла (вторая фаза не нужна).
// Повторная загрузка файла к уже существующей записи начинается
// сразу из created (NewAttach) и никогда не проходит фазу создания.
//
// Автомат живёт только в памяти на время одной отправки.
// Потокобезопасен через sync.Mutex.
package txn

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние транзакции отправки.
type State string

const (
	// StateNotStarted — отправка ещё не начата.
	StateNotStarted State = "not_started"
	// StateCreating — выполняется первая фаза (создание записи).
	StateCreating State = "creating"
	// StateCreated — запись создана, сервер присвоил идентификатор.
	StateCreated State = "created"
	// StateUploading — выполняется вторая фаза (загрузка файла).
	StateUploading State = "uploading"
	// StateComplete — отправка полностью завершена.
	StateComplete State = "complete"
	// StatePartialFailure — запись создана, но файл не загружен.
	StatePartialFailure State = "partial_failure"
	// StateFailed — первая фаза завершилась ошибкой, записи нет.
	StateFailed State = "failed"
)

// TransitionRecord — запись о смене состояния.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// validTransitions — матрица допустимых переходов.
// Ключ — текущее состояние, значение — набор допустимых целевых.
var validTransitions = map[State]map[State]bool{
	StateNotStarted: {StateCreating: true},
	StateCreating:   {StateCreated: true, StateFailed: true},
	StateCreated:    {StateUploading: true, StateComplete: true},
	StateUploading:  {StateComplete: true, StatePartialFailure: true},
	// Терминальные состояния: переходы запрещены. Повторная загрузка
	// после partial_failure — это новая транзакция NewAttach.
	StateComplete:       {},
	StatePartialFailure: {},
	StateFailed:         {},
}

// Transaction — транзакция одной отправки.
// Хранит ключ отправки, текущее состояние, идентификатор созданной
// записи и историю переходов.
type Transaction struct {
	mu         sync.Mutex
	key        string
	current    State
	resourceID string
	history    []TransitionRecord
}

// New создаёт транзакцию отправки в состоянии not_started.
// key — токен отправки, под которым транзакция видна в логах.
func New(key string) *Transaction {
	return &Transaction{
		key:     key,
		current: StateNotStarted,
		history: make([]TransitionRecord, 0),
	}
}

// NewAttach создаёт транзакцию повторной загрузки файла к существующей
// записи: стартует сразу из created с известным идентификатором.
func NewAttach(key, resourceID string) *Transaction {
	return &Transaction{
		key:        key,
		current:    StateCreated,
		resourceID: resourceID,
		history:    make([]TransitionRecord, 0),
	}
}

// Key возвращает токен отправки.
func (t *Transaction) Key() string {
	return t.key
}

// Current возвращает текущее состояние.
func (t *Transaction) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// ResourceID возвращает идентификатор созданной записи.
// Пустая строка, пока первая фаза не завершилась успехом.
func (t *Transaction) ResourceID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resourceID
}

// Terminal возвращает true, если транзакция в терминальном состоянии.
func (t *Transaction) Terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(validTransitions[t.current]) == 0
}

// Transition переводит транзакцию в указанное состояние.
// Недопустимый переход возвращает *TransitionError и не меняет состояния.
func (t *Transaction) Transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

// TransitionCreated фиксирует успех первой фазы: переход в created
// вместе с полученным от сервера идентификатором записи.
func (t *Transaction) TransitionCreated(resourceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if resourceID == "" {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: "переход в created требует идентификатор записи",
		}
	}
	if err := t.transitionLocked(StateCreated); err != nil {
		return err
	}
	t.resourceID = resourceID
	return nil
}

// transitionLocked — переход без захвата мьютекса (вызывающий держит его).
func (t *Transaction) transitionLocked(to State) error {
	if !isValidState(to) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("недопустимое целевое состояние: %q", to),
		}
	}

	targets, ok := validTransitions[t.current]
	if !ok || !targets[to] {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", t.current, to),
		}
	}

	t.history = append(t.history, TransitionRecord{
		From:      t.current,
		To:        to,
		Timestamp: time.Now().UTC(),
	})
	t.current = to
	return nil
}

// History возвращает историю переходов (копия).
func (t *Transaction) History() []TransitionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]TransitionRecord, len(t.history))
	copy(result, t.history)
	return result
}

// Path возвращает пройденный путь состояний строкой для логов,
// например "not_started → creating → created → uploading → complete".
func (t *Transaction) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return string(t.current)
	}
	path := string(t.history[0].From)
	for _, rec := range t.history {
		path += " → " + string(rec.To)
	}
	return path
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isValidState проверяет, является ли значение известным состоянием.
func isValidState(s State) bool {
	switch s {
	case StateNotStarted, StateCreating, StateCreated, StateUploading,
		StateComplete, StatePartialFailure, StateFailed:
		return true
	default:
		return false
	}
}
