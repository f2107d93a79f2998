// Пакет esclient — HTTP-клиент Edustore API.
//
// Все ответы приходят в конверте {success, message?, data?}; success:false
// считается отказом приложения даже при HTTP 200. Каждый запрос несёт
// bearer-токен текущей сессии. Отказ авторизации (401) классифицируется
// как KindAuth и передаётся обработчику завершения сессии.
//
// Повторные попытки выполняются только для GET-запросов и только при
// сетевых ошибках: создание, загрузка и удаление — небезопасные мутации,
// их повтор порождает дубликаты.
package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/filecheck"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// TokenSource — функция, возвращающая bearer-токен текущей сессии.
type TokenSource func(ctx context.Context) (string, error)

// AuthFailureHook — обработчик отказа авторизации (страж сессии).
// Вызывается при каждом ответе 401; дедупликация — на стороне обработчика.
type AuthFailureHook func()

// Config — параметры клиента Edustore API.
type Config struct {
	// BaseURL — базовый адрес API, например https://api.edustore.local.
	BaseURL string
	// Timeout — таймаут обычных запросов.
	Timeout time.Duration
	// UploadTimeout — таймаут запросов загрузки файлов.
	UploadTimeout time.Duration
	// RetryAttempts — число повторных попыток GET-запросов.
	RetryAttempts int
	// RetryBackoff — пауза между повторными попытками.
	RetryBackoff time.Duration
}

// Client — HTTP-клиент Edustore API.
type Client struct {
	httpClient    *http.Client
	uploadClient  *http.Client
	baseURL       string
	tokens        TokenSource
	onAuthFailure AuthFailureHook
	retryAttempts int
	retryBackoff  time.Duration
	logger        *slog.Logger
}

// New создаёт клиент Edustore API.
// tokens поставляет bearer-токен; onAuthFailure уведомляется о каждом 401
// (может быть nil на время начальной сборки, см. SetAuthFailureHook).
func New(cfg Config, tokens TokenSource, onAuthFailure AuthFailureHook, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("не задан адрес Edustore API")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}

	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		uploadClient:  &http.Client{Timeout: cfg.UploadTimeout},
		baseURL:       normalizeURL(cfg.BaseURL),
		tokens:        tokens,
		onAuthFailure: onAuthFailure,
		retryAttempts: cfg.RetryAttempts,
		retryBackoff:  cfg.RetryBackoff,
		logger:        logger.With(slog.String("component", "es_client")),
	}, nil
}

// SetAuthFailureHook задаёт обработчик отказа авторизации.
func (c *Client) SetAuthFailureHook(hook AuthFailureHook) {
	c.onAuthFailure = hook
}

// Login выполняет вход оператора: POST /auth/login.
// Запрос идёт без bearer-токена; 401 здесь означает неверные учётные
// данные, а не смерть сессии, поэтому обработчик не уведомляется.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	env, err := c.doJSON(ctx, http.MethodPost, "/auth/login", payload, false, false)
	if err != nil {
		return nil, err
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("login", err)
	}
	if data.Token == "" {
		return nil, &APIError{Kind: KindDecode, Message: "ответ на вход не содержит токен"}
	}

	return &LoginResult{Token: data.Token, User: data.User}, nil
}

// CreateQuestionPaper создаёт экзаменационный материал: POST /question-papers.
// Возвращает запись с присвоенным сервером идентификатором.
func (c *Client) CreateQuestionPaper(ctx context.Context, draft *model.QuestionPaperDraft) (*model.Resource, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/question-papers", draft, true, true)
	if err != nil {
		return nil, err
	}

	var data questionPaperData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("create question paper", err)
	}
	return c.resourceFromRecord(rbac.ModuleQuestionPapers, data.QuestionPaper)
}

// CreateBook создаёт книгу: POST /books.
func (c *Client) CreateBook(ctx context.Context, draft *model.BookDraft) (*model.Resource, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/books", draft, true, true)
	if err != nil {
		return nil, err
	}

	var data bookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("create book", err)
	}
	return c.resourceFromRecord(rbac.ModuleBooks, data.Book)
}

// UploadQuestionPaperPDF загружает PDF к материалу:
// POST /question-papers/{id}/upload-pdf, поле формы question_paper.
func (c *Client) UploadQuestionPaperPDF(ctx context.Context, id string, file filecheck.Candidate) (*AttachmentInfo, error) {
	path := "/question-papers/" + url.PathEscape(id) + "/upload-pdf"
	env, err := c.doMultipart(ctx, path, "question_paper", file)
	if err != nil {
		return nil, err
	}

	var data uploadPDFData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("upload question paper pdf", err)
	}

	info := &AttachmentInfo{
		ResourceID:   data.QuestionPaperID,
		URL:          data.PDFURL,
		AccessURL:    data.SignedURL,
		OriginalName: data.OriginalName,
	}
	if info.ResourceID == "" {
		info.ResourceID = id
	}
	if info.OriginalName == "" {
		info.OriginalName = file.Name
	}
	return info, nil
}

// UploadBookPDF загружает PDF к книге: POST /books/{id}/upload-pdf, поле book.
func (c *Client) UploadBookPDF(ctx context.Context, id string, file filecheck.Candidate) (*AttachmentInfo, error) {
	path := "/books/" + url.PathEscape(id) + "/upload-pdf"
	env, err := c.doMultipart(ctx, path, "book", file)
	if err != nil {
		return nil, err
	}

	var data uploadPDFData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("upload book pdf", err)
	}

	info := &AttachmentInfo{
		ResourceID:   data.BookID,
		URL:          data.PDFURL,
		AccessURL:    data.SignedURL,
		OriginalName: data.OriginalName,
	}
	if info.ResourceID == "" {
		info.ResourceID = id
	}
	if info.OriginalName == "" {
		info.OriginalName = file.Name
	}
	return info, nil
}

// UploadBookCover загружает обложку книги:
// POST /books/{id}/upload-cover, поле cover_image.
func (c *Client) UploadBookCover(ctx context.Context, id string, file filecheck.Candidate) (*AttachmentInfo, error) {
	path := "/books/" + url.PathEscape(id) + "/upload-cover"
	env, err := c.doMultipart(ctx, path, "cover_image", file)
	if err != nil {
		return nil, err
	}

	var data uploadCoverData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("upload book cover", err)
	}

	info := &AttachmentInfo{
		ResourceID:   data.BookID,
		URL:          data.CoverURL,
		OriginalName: data.OriginalName,
	}
	if info.ResourceID == "" {
		info.ResourceID = id
	}
	if info.OriginalName == "" {
		info.OriginalName = file.Name
	}
	return info, nil
}

// DeleteQuestionPaper удаляет материал: DELETE /question-papers/{id}.
func (c *Client) DeleteQuestionPaper(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/question-papers/"+url.PathEscape(id), nil, true, true)
	return err
}

// DeleteBook удаляет книгу: DELETE /books/{id}.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, true, true)
	return err
}

// ListQuestionPapers запрашивает материалы с фильтрами:
// GET /question-papers?subject=&year=&semester=&exam_type=.
func (c *Client) ListQuestionPapers(ctx context.Context, filter QuestionPaperFilter) ([]*model.Resource, error) {
	query := url.Values{}
	setIfNotEmpty(query, "subject", filter.Subject)
	setIfNotEmpty(query, "year", filter.Year)
	setIfNotEmpty(query, "semester", filter.Semester)
	setIfNotEmpty(query, "exam_type", filter.ExamType)

	env, err := c.doGET(ctx, "/question-papers", query)
	if err != nil {
		return nil, err
	}

	var data questionPaperListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("list question papers", err)
	}
	return c.resourcesFromRecords(rbac.ModuleQuestionPapers, data.QuestionPapers), nil
}

// ListBooks запрашивает книги с фильтрами: GET /books?subject=&college_id=.
func (c *Client) ListBooks(ctx context.Context, filter BookFilter) ([]*model.Resource, error) {
	query := url.Values{}
	setIfNotEmpty(query, "subject", filter.Subject)
	setIfNotEmpty(query, "college_id", filter.CollegeID)

	env, err := c.doGET(ctx, "/books", query)
	if err != nil {
		return nil, err
	}

	var data bookListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("list books", err)
	}
	return c.resourcesFromRecords(rbac.ModuleBooks, data.Books), nil
}

// ListColleges запрашивает справочник учебных заведений: GET /colleges.
func (c *Client) ListColleges(ctx context.Context) ([]model.College, error) {
	env, err := c.doGET(ctx, "/colleges", nil)
	if err != nil {
		return nil, err
	}

	var data collegeListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("list colleges", err)
	}

	colleges := make([]model.College, 0, len(data.Colleges))
	for _, rec := range data.Colleges {
		colleges = append(colleges, model.College(rec))
	}
	return colleges, nil
}

// ListStudents запрашивает справочник студентов: GET /students.
func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	env, err := c.doGET(ctx, "/students", nil)
	if err != nil {
		return nil, err
	}

	var data studentListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, c.decodeError("list students", err)
	}

	students := make([]model.Student, 0, len(data.Students))
	for _, rec := range data.Students {
		students = append(students, model.Student(rec))
	}
	return students, nil
}

// doJSON выполняет запрос с JSON-телом (или без тела) и разбирает конверт.
// authorized — добавить bearer-токен; notifyAuth — уведомлять страж сессии
// о 401 (false для входа: там 401 означает неверный пароль).
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, authorized, notifyAuth bool) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("кодирование тела запроса %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, body, authorized)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.execute(c.httpClient, req, notifyAuth)
}

// doGET выполняет GET-запрос с ограниченным числом повторных попыток.
// Повторяются только сетевые ошибки: ответ сервера, даже ошибочный,
// повторной попытки не заслуживает.
func (c *Client) doGET(ctx context.Context, path string, query url.Values) (*envelope, error) {
	fullPath := path
	if len(query) > 0 {
		fullPath += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Повторная попытка GET-запроса",
				slog.String("path", path),
				slog.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return nil, &APIError{Kind: KindNetwork, Message: "запрос отменён", Err: ctx.Err()}
			case <-time.After(c.retryBackoff):
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, fullPath, nil, true)
		if err != nil {
			return nil, err
		}

		env, err := c.execute(c.httpClient, req, true)
		if err == nil {
			return env, nil
		}
		lastErr = err

		if !IsKind(err, KindNetwork) {
			return nil, err
		}
	}

	return nil, lastErr
}

// doMultipart выполняет загрузку файла multipart-запросом.
// Содержимое файла передаётся потоково через io.Pipe, без буферизации
// в памяти целиком.
func (c *Client) doMultipart(ctx context.Context, path, field string, file filecheck.Candidate) (*envelope, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(field, file.Name)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("создание части формы %q: %w", field, err))
			return
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			pw.CloseWithError(fmt.Errorf("передача содержимого файла: %w", err))
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, pr, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.execute(c.uploadClient, req, true)
}

// newRequest собирает запрос к API с bearer-токеном сессии.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, authorized bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}

	if authorized {
		token, err := c.tokens(ctx)
		if err != nil {
			return nil, &APIError{
				Kind:    KindAuth,
				Message: "нет активной сессии",
				Err:     err,
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// execute выполняет запрос и разбирает конверт ответа.
// Классификация отказов: транспорт → KindNetwork, 401 → KindAuth
// (с уведомлением стража), 404 → KindNotFound, прочие 4xx/5xx и
// success:false → KindServer, неразборчивый ответ → KindDecode.
func (c *Client) execute(client *http.Client, req *http.Request, notifyAuth bool) (*envelope, error) {
	c.logger.Debug("Запрос к Edustore API",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &APIError{
			Kind:    KindNetwork,
			Message: fmt.Sprintf("запрос %s %s не выполнен", req.Method, req.URL.Path),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Kind:    KindNetwork,
			Status:  resp.StatusCode,
			Message: "чтение тела ответа прервано",
			Err:     err,
		}
	}

	var env envelope
	decodeErr := json.Unmarshal(rawBody, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		if notifyAuth && c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		return nil, &APIError{
			Kind:    KindAuth,
			Status:  resp.StatusCode,
			Message: failureMessage(&env, "учётные данные отклонены или истекли"),
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &APIError{
			Kind:    KindNotFound,
			Status:  resp.StatusCode,
			Message: failureMessage(&env, "запись не найдена"),
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Message: failureMessage(&env, strings.TrimSpace(truncate(string(rawBody), 200))),
		}
	}

	if decodeErr != nil {
		return nil, &APIError{
			Kind:    KindDecode,
			Status:  resp.StatusCode,
			Message: "ответ сервера не удалось разобрать",
			Err:     decodeErr,
		}
	}

	// Конверт с success:false — отказ приложения даже при HTTP 200.
	if !env.Success {
		return nil, &APIError{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Message: failureMessage(&env, "сервер отклонил операцию"),
		}
	}

	return &env, nil
}

// resourceFromRecord строит ресурс коллекции из записи ответа сервера.
// Запись создания обязана содержать идентификатор: без него вторая фаза
// отправки невозможна.
func (c *Client) resourceFromRecord(module rbac.Module, fields map[string]any) (*model.Resource, error) {
	if fields == nil {
		return nil, &APIError{Kind: KindDecode, Message: "ответ не содержит запись"}
	}

	res := recordToResource(module, fields)
	if res.ID == "" {
		return nil, &APIError{Kind: KindDecode, Message: "запись в ответе без идентификатора"}
	}
	return res, nil
}

// resourcesFromRecords строит список ресурсов; записи без идентификатора
// пропускаются с предупреждением в логе.
func (c *Client) resourcesFromRecords(module rbac.Module, records []map[string]any) []*model.Resource {
	resources := make([]*model.Resource, 0, len(records))
	for _, rec := range records {
		res := recordToResource(module, rec)
		if res.ID == "" {
			c.logger.Warn("Запись без идентификатора пропущена",
				slog.String("module", string(module)),
			)
			continue
		}
		resources = append(resources, res)
	}
	return resources
}

// recordToResource переносит поля записи сервера в клиентский ресурс.
// Поля id, title и поля вложения потребляются, остальное уходит в Details.
func recordToResource(module rbac.Module, fields map[string]any) *model.Resource {
	res := &model.Resource{
		ID:     stringField(fields, "id"),
		Module: module,
		Title:  stringField(fields, "title"),
		Attachment: model.Attachment{
			URL:          optionalURL(fields, "pdf_url"),
			AccessURL:    optionalURL(fields, "signed_url"),
			OriginalName: stringField(fields, "original_name"),
		},
		CreatedAt: timeField(fields, "created_at"),
	}

	details := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "id", "title", "pdf_url", "signed_url", "original_name", "created_at":
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		res.Details = details
	}
	return res
}

// stringField возвращает строковое представление поля записи.
// Числовые идентификаторы приводятся к строке.
func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// optionalURL возвращает указатель на непустое строковое поле.
func optionalURL(fields map[string]any, key string) *string {
	s := stringField(fields, key)
	if s == "" {
		return nil
	}
	return &s
}

// timeField разбирает поле времени в формате RFC 3339.
// При отсутствии или ошибке разбора — момент получения ответа.
func timeField(fields map[string]any, key string) time.Time {
	if s := stringField(fields, key); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// decodeError оборачивает ошибку разбора поля data.
func (c *Client) decodeError(op string, err error) error {
	return &APIError{
		Kind:    KindDecode,
		Message: fmt.Sprintf("разбор ответа %s", op),
		Err:     err,
	}
}

// failureMessage выбирает сообщение об отказе: из конверта, либо запасное.
func failureMessage(env *envelope, fallback string) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return fallback
}

// truncate обрезает строку до limit символов для сообщений об ошибках.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// setIfNotEmpty добавляет параметр запроса, если значение непустое.
func setIfNotEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
