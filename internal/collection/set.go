package collection

import (
	"log/slog"
	"sync"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// Set — реестр коллекций по модулям.
// Коллекция создаётся при первом обращении и живёт, пока её
// не закроют Drop или DropAll (закрытие представления, выход из сессии).
type Set struct {
	mu     sync.Mutex
	stores map[rbac.Module]*Store
	logger *slog.Logger
}

// NewSet создаёт пустой реестр.
func NewSet(logger *slog.Logger) *Set {
	return &Set{
		stores: make(map[rbac.Module]*Store),
		logger: logger,
	}
}

// Get возвращает коллекцию модуля, создавая её при первом обращении.
func (set *Set) Get(module rbac.Module) *Store {
	set.mu.Lock()
	defer set.mu.Unlock()

	store, ok := set.stores[module]
	if !ok {
		store = New(module, set.logger)
		set.stores[module] = store
	}
	return store
}

// Drop очищает и закрывает коллекцию модуля.
func (set *Set) Drop(module rbac.Module) {
	set.mu.Lock()
	store, ok := set.stores[module]
	if ok {
		delete(set.stores, module)
	}
	set.mu.Unlock()

	if ok {
		store.Clear()
		store.Close()
	}
}

// DropAll закрывает все коллекции реестра.
func (set *Set) DropAll() {
	set.mu.Lock()
	stores := make([]*Store, 0, len(set.stores))
	for module, store := range set.stores {
		stores = append(stores, store)
		delete(set.stores, module)
	}
	set.mu.Unlock()

	for _, store := range stores {
		store.Clear()
		store.Close()
	}
}

// Modules возвращает модули с живыми коллекциями.
func (set *Set) Modules() []rbac.Module {
	set.mu.Lock()
	defer set.mu.Unlock()

	modules := make([]rbac.Module, 0, len(set.stores))
	for module := range set.stores {
		modules = append(modules, module)
	}
	return modules
}
