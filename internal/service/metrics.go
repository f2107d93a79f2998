// metrics.go — Prometheus-метрики сервисного слоя.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationsTotal — исходы операций конвейера изменений
	// по модулям и операциям.
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ac_mutations_total",
			Help: "Количество операций конвейера изменений по исходам.",
		},
		[]string{"module", "operation", "outcome"},
	)

	// permissionCacheHits — попадания в кэш решений доступа.
	permissionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ac_permission_cache_hits_total",
		Help: "Количество попаданий в кэш решений доступа.",
	})

	// permissionCacheMisses — промахи кэша решений доступа.
	permissionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ac_permission_cache_misses_total",
		Help: "Количество промахов кэша решений доступа.",
	})
)
