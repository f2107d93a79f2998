// directory.go — сервис справочников: учебные заведения и студенты.
// Только чтение; защищён той же матрицей доступа, что и каталог.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// DirectoryGateway — операции чтения справочников Edustore API.
type DirectoryGateway interface {
	ListColleges(ctx context.Context) ([]model.College, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
}

// DirectoryService — доступ к справочникам с шлюзом доступа.
type DirectoryService struct {
	gateway DirectoryGateway
	access  *AccessService
	logger  *slog.Logger
}

// NewDirectoryService создаёт сервис справочников.
func NewDirectoryService(gateway DirectoryGateway, access *AccessService, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		gateway: gateway,
		access:  access,
		logger:  logger.With(slog.String("component", "directory")),
	}
}

// Colleges возвращает справочник учебных заведений.
func (s *DirectoryService) Colleges(ctx context.Context, role rbac.Role) ([]model.College, error) {
	if !s.access.HasAccess(role, rbac.ModuleColleges) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, s.access.DeniedMessage(role, rbac.ModuleColleges))
	}

	colleges, err := s.gateway.ListColleges(ctx)
	if err != nil {
		return nil, fmt.Errorf("справочник заведений: %w", err)
	}
	return colleges, nil
}

// Students возвращает справочник студентов.
func (s *DirectoryService) Students(ctx context.Context, role rbac.Role) ([]model.Student, error) {
	if !s.access.HasAccess(role, rbac.ModuleStudents) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, s.access.DeniedMessage(role, rbac.ModuleStudents))
	}

	students, err := s.gateway.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("справочник студентов: %w", err)
	}
	return students, nil
}
