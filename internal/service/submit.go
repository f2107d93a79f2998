// submit.go — двухфазный конвейер изменений каталога.
//
// Submit проводит отправку через шлюзы (занятость ключа, право изменения,
// валидация файла) и две сетевые фазы: создание метаданных и загрузка
// вложения. Ни одна фаза не повторяется автоматически: обе — мутации,
// их повтор порождает дубликаты. Сбой фазы 2 фиксируется как частичный:
// ресурс существует на сервере без файла, коллекция получает
// деградированную запись, повтор идёт только через Attach.
//
// Отправки с разными ключами выполняются параллельно; порядок их
// завершения не определён, коллекция отражает порядок завершения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturkryukov/edustore/admin-client/internal/collection"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/filecheck"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/txn"
	"github.com/arturkryukov/edustore/admin-client/internal/esclient"
)

// Операции конвейера для метрик.
const (
	opSubmit  = "submit"
	opAttach  = "attach"
	opDelete  = "delete"
	opRefresh = "refresh"
)

// Outcome — классифицированный исход операции конвейера.
type Outcome string

const (
	// OutcomeComplete — обе фазы завершены, ресурс полон.
	OutcomeComplete Outcome = "complete"
	// OutcomeDenied — отказ шлюза доступа, сетевых вызовов не было.
	OutcomeDenied Outcome = "denied"
	// OutcomeRejected — файл не прошёл валидацию, сетевых вызовов не было.
	OutcomeRejected Outcome = "rejected"
	// OutcomeCreationFailed — фаза 1 не удалась, на сервере ничего нет.
	OutcomeCreationFailed Outcome = "creation_failed"
	// OutcomePartialFailure — ресурс создан, файл не присоединён.
	OutcomePartialFailure Outcome = "partial_failure"
	// OutcomeDeleted — ресурс удалён на сервере и из коллекции.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeDeletionFailed — сервер не подтвердил удаление,
	// коллекция не изменена.
	OutcomeDeletionFailed Outcome = "deletion_failed"
	// OutcomeRefreshed — коллекция заменена списком с сервера.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeRefreshFailed — список с сервера не получен.
	OutcomeRefreshFailed Outcome = "refresh_failed"
)

// Gateway — операции Edustore API, используемые конвейером.
// Реализуется esclient.Client; в тестах подменяется фейком.
type Gateway interface {
	CreateQuestionPaper(ctx context.Context, draft *model.QuestionPaperDraft) (*model.Resource, error)
	CreateBook(ctx context.Context, draft *model.BookDraft) (*model.Resource, error)
	UploadQuestionPaperPDF(ctx context.Context, id string, file filecheck.Candidate) (*esclient.AttachmentInfo, error)
	UploadBookPDF(ctx context.Context, id string, file filecheck.Candidate) (*esclient.AttachmentInfo, error)
	UploadBookCover(ctx context.Context, id string, file filecheck.Candidate) (*esclient.AttachmentInfo, error)
	DeleteQuestionPaper(ctx context.Context, id string) error
	DeleteBook(ctx context.Context, id string) error
	ListQuestionPapers(ctx context.Context, filter esclient.QuestionPaperFilter) ([]*model.Resource, error)
	ListBooks(ctx context.Context, filter esclient.BookFilter) ([]*model.Resource, error)
}

// AttachKind — вид досылаемого вложения.
type AttachKind string

const (
	// AttachPDF — основной документ ресурса.
	AttachPDF AttachKind = "pdf"
	// AttachCover — обложка книги.
	AttachCover AttachKind = "cover"
)

// SubmitParams — параметры двухфазной отправки.
type SubmitParams struct {
	// Key — ключ отправки для защиты от дублей.
	Key string
	// Role — роль оператора.
	Role rbac.Role
	// Draft — черновик метаданных, определяет модуль.
	Draft model.Draft
	// File — вложение. nil — отправка без файла, фаза 2 пропускается.
	File *filecheck.Candidate
}

// AttachParams — параметры досылки вложения (только фаза 2).
type AttachParams struct {
	Key        string
	Role       rbac.Role
	Module     rbac.Module
	ResourceID string
	Kind       AttachKind
	File       filecheck.Candidate
}

// DeleteParams — параметры удаления ресурса.
type DeleteParams struct {
	Role       rbac.Role
	Module     rbac.Module
	ResourceID string
}

// SubmitResult — исход операции конвейера.
type SubmitResult struct {
	// Outcome — классифицированный исход.
	Outcome Outcome
	// Resource — затронутый ресурс, если он известен.
	// При PartialFailure — деградированная запись без вложения.
	Resource *model.Resource
	// ResourceID — идентификатор ресурса, если сервер его присвоил.
	// Заполнен при PartialFailure: повтор через Attach требует id.
	ResourceID string
	// Reason — вид нарушения правил файла (только Rejected).
	Reason filecheck.Kind
	// Message — человекочитаемое описание исхода.
	Message string
	// Status — HTTP-статус ответа сервера при сбое, 0 — не применимо.
	Status int
}

// SubmitService — оркестратор конвейера изменений.
type SubmitService struct {
	gateway Gateway
	access  *AccessService
	stores  *collection.Set
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmitService создаёт оркестратор конвейера.
func NewSubmitService(gateway Gateway, access *AccessService, stores *collection.Set, logger *slog.Logger) *SubmitService {
	return &SubmitService{
		gateway:  gateway,
		access:   access,
		stores:   stores,
		logger:   logger.With(slog.String("component", "submit")),
		inFlight: make(map[string]struct{}),
	}
}

// Submit выполняет двухфазную отправку: создание метаданных, затем
// загрузка вложения. Все шлюзы срабатывают до первого сетевого вызова.
func (s *SubmitService) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if params.Draft == nil {
		return nil, fmt.Errorf("%w: черновик не передан", ErrInvalidDraft)
	}
	module := params.Draft.DraftModule()

	// Шлюз занятости: дубликат ключа отклоняется без сетевых вызовов.
	if err := s.acquire(params.Key); err != nil {
		return nil, err
	}
	defer s.release(params.Key)

	tx := txn.New(params.Key)

	// Шлюз доступа: право изменения проверяется до любых сетевых вызовов.
	if !s.access.CanModify(params.Role, module) {
		return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
			Outcome: OutcomeDenied,
			Message: s.access.DeniedMessage(params.Role, module),
		}), nil
	}

	// Валидация метаданных черновика.
	if err := params.Draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}

	// Шлюз валидации файла: тип, затем размер; до любых сетевых вызовов.
	// Сервер никогда не увидит ресурс, чей файл будет отвергнут.
	if params.File != nil {
		if verdict := filecheck.Validate(*params.File); !verdict.Valid {
			return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
				Outcome: OutcomeRejected,
				Reason:  verdict.Kind,
				Message: verdict.Kind.Message(),
			}), nil
		}
	}

	// Фаза 1: создание метаданных.
	s.advance(tx, txn.StateCreating)

	resource, err := s.create(ctx, params.Draft)
	if err != nil {
		if errors.Is(err, ErrUnsupportedModule) {
			return nil, err
		}
		s.advance(tx, txn.StateFailed)
		s.logger.Error("создание метаданных не удалось",
			slog.String("module", string(module)),
			slog.String("key", params.Key),
			slog.String("error", err.Error()),
		)
		return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
			Outcome: OutcomeCreationFailed,
			Message: failureMessage(err),
			Status:  failureStatus(err),
		}), nil
	}

	if err := tx.TransitionCreated(resource.ID); err != nil {
		return nil, fmt.Errorf("фиксация идентификатора: %w", err)
	}

	store := s.stores.Get(module)

	// Отправка без файла завершена после фазы 1.
	if params.File == nil {
		s.advance(tx, txn.StateComplete)
		store.Append(resource)
		return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
			Outcome:    OutcomeComplete,
			Resource:   resource,
			ResourceID: resource.ID,
		}), nil
	}

	// Фаза 2: загрузка вложения.
	s.advance(tx, txn.StateUploading)

	info, err := s.upload(ctx, module, resource.ID, *params.File)
	if err != nil {
		s.advance(tx, txn.StatePartialFailure)
		// Ресурс существует без файла: коллекция получает
		// деградированную запись, исход несёт настоящий id.
		store.Append(resource)
		s.logger.Warn("файл не присоединён, ресурс деградирован",
			slog.String("module", string(module)),
			slog.String("resource_id", resource.ID),
			slog.String("error", err.Error()),
		)
		return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
			Outcome:    OutcomePartialFailure,
			Resource:   resource,
			ResourceID: resource.ID,
			Message:    failureMessage(err),
			Status:     failureStatus(err),
		}), nil
	}

	s.advance(tx, txn.StateComplete)
	applyAttachment(resource, info)
	store.Append(resource)

	s.logger.Info("отправка завершена",
		slog.String("module", string(module)),
		slog.String("resource_id", resource.ID),
	)
	return s.finish(module, opSubmit, tx.Path(), &SubmitResult{
		Outcome:    OutcomeComplete,
		Resource:   resource,
		ResourceID: resource.ID,
	}), nil
}

// Attach досылает вложение существующему ресурсу: только фаза 2.
// Создание никогда не вызывается; успех поднимает деградированную
// запись коллекции на её позиции.
func (s *SubmitService) Attach(ctx context.Context, params AttachParams) (*SubmitResult, error) {
	if params.ResourceID == "" {
		return nil, ErrMissingResourceID
	}
	if params.File.Name == "" && params.File.Content == nil {
		return nil, ErrMissingFile
	}
	if params.Kind == "" {
		params.Kind = AttachPDF
	}

	if err := s.acquire(params.Key); err != nil {
		return nil, err
	}
	defer s.release(params.Key)

	// Транзакция начинается с created: метаданные уже на сервере.
	tx := txn.NewAttach(params.Key, params.ResourceID)

	if !s.access.CanModify(params.Role, params.Module) {
		return s.finish(params.Module, opAttach, tx.Path(), &SubmitResult{
			Outcome:    OutcomeDenied,
			ResourceID: params.ResourceID,
			Message:    s.access.DeniedMessage(params.Role, params.Module),
		}), nil
	}

	profile := filecheck.ProfilePDF
	if params.Kind == AttachCover {
		profile = filecheck.ProfileCoverImage
	}
	if verdict := profile.Check(params.File); !verdict.Valid {
		return s.finish(params.Module, opAttach, tx.Path(), &SubmitResult{
			Outcome:    OutcomeRejected,
			ResourceID: params.ResourceID,
			Reason:     verdict.Kind,
			Message:    verdict.Kind.Message(),
		}), nil
	}

	s.advance(tx, txn.StateUploading)

	info, err := s.attachUpload(ctx, params)
	if err != nil {
		if errors.Is(err, ErrUnsupportedModule) {
			return nil, err
		}
		s.advance(tx, txn.StatePartialFailure)
		s.logger.Warn("досылка вложения не удалась",
			slog.String("module", string(params.Module)),
			slog.String("resource_id", params.ResourceID),
			slog.String("error", err.Error()),
		)
		return s.finish(params.Module, opAttach, tx.Path(), &SubmitResult{
			Outcome:    OutcomePartialFailure,
			ResourceID: params.ResourceID,
			Message:    failureMessage(err),
			Status:     failureStatus(err),
		}), nil
	}

	s.advance(tx, txn.StateComplete)
	s.applyAttachResult(params, info)

	s.logger.Info("вложение присоединено",
		slog.String("module", string(params.Module)),
		slog.String("resource_id", params.ResourceID),
	)
	return s.finish(params.Module, opAttach, tx.Path(), &SubmitResult{
		Outcome:    OutcomeComplete,
		ResourceID: params.ResourceID,
	}), nil
}

// Delete удаляет ресурс: однофазная операция.
// Коллекция изменяется только после подтверждения сервера.
func (s *SubmitService) Delete(ctx context.Context, params DeleteParams) (*SubmitResult, error) {
	if params.ResourceID == "" {
		return nil, ErrMissingResourceID
	}

	if !s.access.CanModify(params.Role, params.Module) {
		return s.finish(params.Module, opDelete, "", &SubmitResult{
			Outcome:    OutcomeDenied,
			ResourceID: params.ResourceID,
			Message:    s.access.DeniedMessage(params.Role, params.Module),
		}), nil
	}

	if err := s.delete(ctx, params.Module, params.ResourceID); err != nil {
		if errors.Is(err, ErrUnsupportedModule) {
			return nil, err
		}
		// Судьба материала на сервере неизвестна: коллекция не изменяется,
		// материал остаётся видимым.
		s.logger.Warn("удаление не подтверждено сервером",
			slog.String("module", string(params.Module)),
			slog.String("resource_id", params.ResourceID),
			slog.String("error", err.Error()),
		)
		return s.finish(params.Module, opDelete, "", &SubmitResult{
			Outcome:    OutcomeDeletionFailed,
			ResourceID: params.ResourceID,
			Message:    failureMessage(err),
			Status:     failureStatus(err),
		}), nil
	}

	s.stores.Get(params.Module).Remove(params.ResourceID)

	s.logger.Info("ресурс удалён",
		slog.String("module", string(params.Module)),
		slog.String("resource_id", params.ResourceID),
	)
	return s.finish(params.Module, opDelete, "", &SubmitResult{
		Outcome:    OutcomeDeleted,
		ResourceID: params.ResourceID,
	}), nil
}

// RefreshQuestionPapers заменяет коллекцию экзаменационных материалов
// списком с сервера и возвращает снимок.
func (s *SubmitService) RefreshQuestionPapers(ctx context.Context, role rbac.Role, filter esclient.QuestionPaperFilter) ([]*model.Resource, error) {
	return s.refresh(ctx, role, rbac.ModuleQuestionPapers, func(ctx context.Context) ([]*model.Resource, error) {
		return s.gateway.ListQuestionPapers(ctx, filter)
	})
}

// RefreshBooks заменяет коллекцию книг списком с сервера
// и возвращает снимок.
func (s *SubmitService) RefreshBooks(ctx context.Context, role rbac.Role, filter esclient.BookFilter) ([]*model.Resource, error) {
	return s.refresh(ctx, role, rbac.ModuleBooks, func(ctx context.Context) ([]*model.Resource, error) {
		return s.gateway.ListBooks(ctx, filter)
	})
}

// refresh — общий путь чтения: шлюз доступа, список с сервера,
// полная замена коллекции.
func (s *SubmitService) refresh(ctx context.Context, role rbac.Role, module rbac.Module, list func(context.Context) ([]*model.Resource, error)) ([]*model.Resource, error) {
	if !s.access.HasAccess(role, module) {
		mutationsTotal.WithLabelValues(string(module), opRefresh, string(OutcomeDenied)).Inc()
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, s.access.DeniedMessage(role, module))
	}

	resources, err := list(ctx)
	if err != nil {
		mutationsTotal.WithLabelValues(string(module), opRefresh, string(OutcomeRefreshFailed)).Inc()
		return nil, fmt.Errorf("обновление коллекции %s: %w", module, err)
	}

	store := s.stores.Get(module)
	store.ReplaceAll(resources)
	mutationsTotal.WithLabelValues(string(module), opRefresh, string(OutcomeRefreshed)).Inc()

	s.logger.Debug("коллекция обновлена с сервера",
		slog.String("module", string(module)),
		slog.Int("count", len(resources)),
	)
	return store.Snapshot(), nil
}

// create выполняет фазу 1 для модуля черновика.
func (s *SubmitService) create(ctx context.Context, draft model.Draft) (*model.Resource, error) {
	switch d := draft.(type) {
	case *model.QuestionPaperDraft:
		return s.gateway.CreateQuestionPaper(ctx, d)
	case *model.BookDraft:
		return s.gateway.CreateBook(ctx, d)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedModule, draft)
	}
}

// upload выполняет фазу 2 для модуля.
func (s *SubmitService) upload(ctx context.Context, module rbac.Module, id string, file filecheck.Candidate) (*esclient.AttachmentInfo, error) {
	switch module {
	case rbac.ModuleQuestionPapers:
		return s.gateway.UploadQuestionPaperPDF(ctx, id, file)
	case rbac.ModuleBooks:
		return s.gateway.UploadBookPDF(ctx, id, file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModule, module)
	}
}

// attachUpload — диспетчер загрузки для Attach с учётом вида вложения.
func (s *SubmitService) attachUpload(ctx context.Context, params AttachParams) (*esclient.AttachmentInfo, error) {
	if params.Kind == AttachCover {
		if params.Module != rbac.ModuleBooks {
			return nil, fmt.Errorf("%w: обложка доступна только книгам", ErrUnsupportedModule)
		}
		return s.gateway.UploadBookCover(ctx, params.ResourceID, params.File)
	}
	return s.upload(ctx, params.Module, params.ResourceID, params.File)
}

// applyAttachResult обновляет коллекцию после успешной досылки.
func (s *SubmitService) applyAttachResult(params AttachParams, info *esclient.AttachmentInfo) {
	store := s.stores.Get(params.Module)

	if params.Kind == AttachCover {
		// Обложка не меняет основное вложение: URL уходит в детали записи.
		res, ok := store.Get(params.ResourceID)
		if !ok || info.URL == nil {
			return
		}
		if res.Details == nil {
			res.Details = make(map[string]any)
		}
		res.Details["cover_url"] = *info.URL
		store.Append(res)
		return
	}

	store.Upgrade(params.ResourceID, model.Attachment{
		URL:          info.URL,
		AccessURL:    info.AccessURL,
		OriginalName: info.OriginalName,
	})
}

// delete выполняет удаление на сервере для модуля.
func (s *SubmitService) delete(ctx context.Context, module rbac.Module, id string) error {
	switch module {
	case rbac.ModuleQuestionPapers:
		return s.gateway.DeleteQuestionPaper(ctx, id)
	case rbac.ModuleBooks:
		return s.gateway.DeleteBook(ctx, id)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedModule, module)
	}
}

// acquire регистрирует ключ отправки в карте выполняющихся.
func (s *SubmitService) acquire(key string) error {
	if key == "" {
		return ErrMissingKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return fmt.Errorf("%w: %s", ErrSubmissionInFlight, key)
	}
	s.inFlight[key] = struct{}{}
	return nil
}

// release снимает ключ отправки.
func (s *SubmitService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// advance переводит транзакцию. Ошибка перехода — программная ошибка
// конвейера: переходы зашиты в код, журналируем и продолжаем.
func (s *SubmitService) advance(tx *txn.Transaction, to txn.State) {
	if err := tx.Transition(to); err != nil {
		s.logger.Error("недопустимый переход транзакции",
			slog.String("key", tx.Key()),
			slog.String("error", err.Error()),
		)
	}
}

// finish фиксирует исход: метрика и журнал пути транзакции.
func (s *SubmitService) finish(module rbac.Module, operation, path string, result *SubmitResult) *SubmitResult {
	mutationsTotal.WithLabelValues(string(module), operation, string(result.Outcome)).Inc()
	s.logger.Debug("исход операции конвейера",
		slog.String("module", string(module)),
		slog.String("operation", operation),
		slog.String("outcome", string(result.Outcome)),
		slog.String("path", path),
	)
	return result
}

// applyAttachment переносит данные вложения в ресурс.
func applyAttachment(res *model.Resource, info *esclient.AttachmentInfo) {
	res.Attachment = model.Attachment{
		URL:          info.URL,
		AccessURL:    info.AccessURL,
		OriginalName: info.OriginalName,
	}
}

// failureMessage извлекает сообщение сервера из ошибки шлюза.
func failureMessage(err error) string {
	var apiErr *esclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// failureStatus извлекает HTTP-статус ответа сервера, 0 — не применимо.
func failureStatus(err error) int {
	var apiErr *esclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
