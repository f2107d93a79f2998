// Пакет server — HTTP-сервер админ-клиента с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/edustore/admin-client/internal/api/handlers"
	"github.com/arturkryukov/edustore/admin-client/internal/api/middleware"
	"github.com/arturkryukov/edustore/admin-client/internal/config"
)

// Server — HTTP-сервер админ-клиента.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// sessionAuth — middleware активной сессии (может быть nil для
// тестирования без аутентификации).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, sessionAuth *middleware.SessionAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(logger, handler, sessionAuth),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// newRouter собирает маршруты и middleware фасада.
func newRouter(logger *slog.Logger, handler *handlers.APIHandler, sessionAuth *middleware.SessionAuth) *chi.Mux {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health и metrics проверяются Kubernetes
	// напрямую, без сессии.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Управление сессией доступно без активной сессии:
		// вход создаёт её, GET и DELETE корректны в любом состоянии.
		r.Post("/session", handler.Login)
		r.Get("/session", handler.GetSession)
		r.Delete("/session", handler.Logout)

		// Остальные маршруты требуют активной сессии.
		r.Group(func(r chi.Router) {
			if sessionAuth != nil {
				r.Use(sessionAuth.Middleware())
			}

			r.Get("/question-papers", handler.ListQuestionPapers)
			r.Post("/question-papers", handler.CreateQuestionPaper)
			r.Post("/question-papers/{id}/pdf", handler.AttachQuestionPaperPDF)
			r.Delete("/question-papers/{id}", handler.DeleteQuestionPaper)

			r.Get("/books", handler.ListBooks)
			r.Post("/books", handler.CreateBook)
			r.Post("/books/{id}/pdf", handler.AttachBookPDF)
			r.Post("/books/{id}/cover", handler.AttachBookCover)
			r.Delete("/books/{id}", handler.DeleteBook)

			r.Get("/colleges", handler.ListColleges)
			r.Get("/students", handler.ListStudents)

			r.Get("/events", handler.Events)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
