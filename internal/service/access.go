// access.go — сервис решений доступа с мемоизацией.
// Матрицы rbac статичны, но решения запрашиваются на каждый запрос фасада;
// кэш с TTL снимает повторные обращения и сбрасывается при смене сессии.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// AccessService — решения доступа поверх матриц rbac
// с мемоизацией в expirable LRU.
type AccessService struct {
	cache  *expirable.LRU[string, bool]
	logger *slog.Logger
}

// NewAccessService создаёт сервис решений доступа.
// size — ёмкость кэша, ttl — время жизни записи.
func NewAccessService(size int, ttl time.Duration, logger *slog.Logger) *AccessService {
	return &AccessService{
		cache:  expirable.NewLRU[string, bool](size, nil, ttl),
		logger: logger.With(slog.String("component", "access")),
	}
}

// HasAccess возвращает решение о доступе на чтение раздела.
func (s *AccessService) HasAccess(role rbac.Role, module rbac.Module) bool {
	return s.decide("access", role, module, rbac.HasAccess)
}

// CanModify возвращает решение о праве изменения раздела.
func (s *AccessService) CanModify(role rbac.Role, module rbac.Module) bool {
	return s.decide("modify", role, module, rbac.CanModify)
}

// DeniedMessage возвращает сообщение об отказе для пары роль/раздел.
func (s *AccessService) DeniedMessage(role rbac.Role, module rbac.Module) string {
	return rbac.AccessDeniedMessage(role, module)
}

// Reset сбрасывает кэш целиком. Вызывается при каждой смене сессии:
// вход, выход, отзыв сессии сервером.
func (s *AccessService) Reset() {
	s.cache.Purge()
	s.logger.Debug("кэш решений доступа сброшен")
}

// decide возвращает мемоизированное решение матрицы.
func (s *AccessService) decide(op string, role rbac.Role, module rbac.Module, matrix func(rbac.Role, rbac.Module) bool) bool {
	key := fmt.Sprintf("%s:%s:%s", op, role, module)

	if decision, ok := s.cache.Get(key); ok {
		permissionCacheHits.Inc()
		return decision
	}

	permissionCacheMisses.Inc()
	decision := matrix(role, module)
	s.cache.Add(key, decision)
	return decision
}
