package esclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/filecheck"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockAPI создаёт mock HTTP-сервер Edustore API.
func setupMockAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// mockTokenSource возвращает фиксированный токен.
func mockTokenSource(token string) TokenSource {
	return func(ctx context.Context) (string, error) {
		return token, nil
	}
}

// mockTokenSourceError возвращает ошибку вместо токена.
func mockTokenSourceError() TokenSource {
	return func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("нет активной сессии")
	}
}

// newTestClient создаёт клиент, направленный на mock-сервер.
func newTestClient(t *testing.T, serverURL string, tokens TokenSource, hook AuthFailureHook) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:       serverURL,
		Timeout:       5 * time.Second,
		UploadTimeout: 5 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  10 * time.Millisecond,
	}, tokens, hook, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// TestClient_CreateQuestionPaper проверяет POST /question-papers.
func TestClient_CreateQuestionPaper(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/question-papers" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("ожидался Bearer test-token, получен %q", auth)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("декодирование тела запроса: %v", err)
		}
		if body["title"] != "Линейная алгебра" {
			t.Errorf("ожидался title=Линейная алгебра, получен %v", body["title"])
		}
		if body["year"] != float64(2025) {
			t.Errorf("ожидался year=2025, получен %v", body["year"])
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"question_paper":{
			"id":"qp-1","title":"Линейная алгебра","subject":"Математика",
			"year":2025,"semester":2,"pdf_url":null,
			"created_at":"2025-08-20T10:00:00Z"}}}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("test-token"), nil)

	res, err := client.CreateQuestionPaper(context.Background(), &model.QuestionPaperDraft{
		Title:    "Линейная алгебра",
		Subject:  "Математика",
		Year:     2025,
		Semester: 2,
	})
	if err != nil {
		t.Fatalf("Ошибка CreateQuestionPaper: %v", err)
	}

	if res.ID != "qp-1" {
		t.Errorf("ожидался ID=qp-1, получен %s", res.ID)
	}
	if res.Title != "Линейная алгебра" {
		t.Errorf("ожидался Title=Линейная алгебра, получен %s", res.Title)
	}
	if !res.Degraded() {
		t.Error("запись без pdf_url должна быть деградированной")
	}
	if res.Details["subject"] != "Математика" {
		t.Errorf("ожидался subject в Details, получено %v", res.Details)
	}
	if res.CreatedAt.IsZero() {
		t.Error("CreatedAt не должен быть нулевым")
	}
}

// TestClient_Create_EnvelopeFailure проверяет success:false при HTTP 200.
func TestClient_Create_EnvelopeFailure(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"message":"год вне допустимого диапазона"}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	_, err := client.CreateQuestionPaper(context.Background(), &model.QuestionPaperDraft{Title: "x"})
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидалась *APIError, получена %T", err)
	}
	if apiErr.Kind != KindServer {
		t.Errorf("ожидался Kind=%s, получен %s", KindServer, apiErr.Kind)
	}
	if apiErr.Status != http.StatusOK {
		t.Errorf("ожидался Status=200, получен %d", apiErr.Status)
	}
	if apiErr.Message != "год вне допустимого диапазона" {
		t.Errorf("сообщение конверта потеряно: %q", apiErr.Message)
	}
}

// TestClient_Create_MissingID проверяет ответ создания без идентификатора.
func TestClient_Create_MissingID(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"question_paper":{"title":"без id"}}}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	_, err := client.CreateQuestionPaper(context.Background(), &model.QuestionPaperDraft{Title: "x"})
	if !IsKind(err, KindDecode) {
		t.Fatalf("ожидалась ошибка KindDecode, получена %v", err)
	}
}

// TestClient_UploadQuestionPaperPDF проверяет multipart-загрузку PDF.
func TestClient_UploadQuestionPaperPDF(t *testing.T) {
	content := []byte("%PDF-1.7 тестовое содержимое")

	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/question-papers/qp-1/upload-pdf" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			t.Fatalf("разбор multipart: %v", err)
		}

		file, header, err := r.FormFile("question_paper")
		if err != nil {
			t.Fatalf("поле формы question_paper отсутствует: %v", err)
		}
		defer file.Close()

		if header.Filename != "algebra.pdf" {
			t.Errorf("ожидалось имя algebra.pdf, получено %s", header.Filename)
		}
		got, _ := io.ReadAll(file)
		if string(got) != string(content) {
			t.Error("содержимое файла искажено при передаче")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{
			"question_paper_id":"qp-1",
			"pdf_url":"https://files.edustore.local/qp/qp-1.pdf",
			"signed_url":"https://files.edustore.local/qp/qp-1.pdf?sig=abc",
			"original_name":"algebra.pdf"}}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	info, err := client.UploadQuestionPaperPDF(context.Background(), "qp-1", filecheck.Candidate{
		Name:      "algebra.pdf",
		SizeBytes: int64(len(content)),
		Content:   strings.NewReader(string(content)),
	})
	if err != nil {
		t.Fatalf("Ошибка UploadQuestionPaperPDF: %v", err)
	}

	if info.ResourceID != "qp-1" {
		t.Errorf("ожидался ResourceID=qp-1, получен %s", info.ResourceID)
	}
	if info.URL == nil || *info.URL != "https://files.edustore.local/qp/qp-1.pdf" {
		t.Errorf("ожидался pdf_url, получен %v", info.URL)
	}
	if info.AccessURL == nil {
		t.Error("ожидался signed_url")
	}
	if info.OriginalName != "algebra.pdf" {
		t.Errorf("ожидалось original_name=algebra.pdf, получено %s", info.OriginalName)
	}
}

// TestClient_UploadBookFields проверяет имена полей формы для книг:
// book для PDF, cover_image для обложки.
func TestClient_UploadBookFields(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			t.Fatalf("разбор multipart: %v", err)
		}

		switch r.URL.Path {
		case "/books/b-1/upload-pdf":
			if _, _, err := r.FormFile("book"); err != nil {
				t.Errorf("ожидалось поле book: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success":true,"data":{"book_id":"b-1","pdf_url":"https://files.edustore.local/b/b-1.pdf"}}`)
		case "/books/b-1/upload-cover":
			if _, _, err := r.FormFile("cover_image"); err != nil {
				t.Errorf("ожидалось поле cover_image: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success":true,"data":{"book_id":"b-1","cover_url":"https://files.edustore.local/b/b-1.jpg"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	pdf, err := client.UploadBookPDF(context.Background(), "b-1", filecheck.Candidate{
		Name: "book.pdf", Content: strings.NewReader("pdf"),
	})
	if err != nil {
		t.Fatalf("Ошибка UploadBookPDF: %v", err)
	}
	if pdf.URL == nil || *pdf.URL == "" {
		t.Error("ожидался pdf_url для книги")
	}

	cover, err := client.UploadBookCover(context.Background(), "b-1", filecheck.Candidate{
		Name: "cover.jpg", Content: strings.NewReader("jpg"),
	})
	if err != nil {
		t.Fatalf("Ошибка UploadBookCover: %v", err)
	}
	if cover.URL == nil || *cover.URL != "https://files.edustore.local/b/b-1.jpg" {
		t.Errorf("ожидался cover_url, получен %v", cover.URL)
	}
}

// TestClient_DeleteQuestionPaper проверяет DELETE /question-papers/{id}.
func TestClient_DeleteQuestionPaper(t *testing.T) {
	var gotMethod, gotPath string

	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	if err := client.DeleteQuestionPaper(context.Background(), "qp-1"); err != nil {
		t.Fatalf("Ошибка DeleteQuestionPaper: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("ожидался метод DELETE, получен %s", gotMethod)
	}
	if gotPath != "/question-papers/qp-1" {
		t.Errorf("ожидался путь /question-papers/qp-1, получен %s", gotPath)
	}
}

// TestClient_ListQuestionPapers проверяет фильтры и разбор списка.
func TestClient_ListQuestionPapers(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("subject") != "Физика" {
			t.Errorf("ожидался subject=Физика, получен %q", q.Get("subject"))
		}
		if q.Get("year") != "2024" {
			t.Errorf("ожидался year=2024, получен %q", q.Get("year"))
		}
		if q.Has("semester") {
			t.Error("пустой фильтр semester не должен попадать в запрос")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"question_papers":[
			{"id":101,"title":"Механика","subject":"Физика","year":2024,
			 "pdf_url":"https://files.edustore.local/qp/101.pdf"},
			{"id":"qp-102","title":"Оптика","subject":"Физика","year":2024,"pdf_url":null},
			{"title":"без идентификатора"}]}}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	resources, err := client.ListQuestionPapers(context.Background(), QuestionPaperFilter{
		Subject: "Физика",
		Year:    "2024",
	})
	if err != nil {
		t.Fatalf("Ошибка ListQuestionPapers: %v", err)
	}

	if len(resources) != 2 {
		t.Fatalf("ожидалось 2 записи (без id — пропуск), получено %d", len(resources))
	}
	if resources[0].ID != "101" {
		t.Errorf("числовой id должен приводиться к строке, получен %q", resources[0].ID)
	}
	if resources[0].Degraded() {
		t.Error("запись с pdf_url не должна быть деградированной")
	}
	if !resources[1].Degraded() {
		t.Error("запись с pdf_url=null должна быть деградированной")
	}
}

// TestClient_AuthFailureHook проверяет уведомление стража сессии при 401.
func TestClient_AuthFailureHook(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"токен истёк"}`)
	})

	var hookCalls atomic.Int32
	client := newTestClient(t, server.URL, mockTokenSource("dead-token"), func() {
		hookCalls.Add(1)
	})

	err := client.DeleteQuestionPaper(context.Background(), "qp-1")
	if !IsKind(err, KindAuth) {
		t.Fatalf("ожидалась ошибка KindAuth, получена %v", err)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("обработчик должен вызываться один раз на запрос, вызван %d", hookCalls.Load())
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "токен истёк" {
		t.Errorf("сообщение конверта потеряно: %q", apiErr.Message)
	}
}

// TestClient_Login проверяет вход: без bearer-токена и без уведомления
// стража при неверном пароле.
func TestClient_Login(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("вход не должен передавать Authorization header")
		}

		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)

		w.Header().Set("Content-Type", "application/json")
		if creds["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"success":false,"message":"неверные учётные данные"}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":{"token":"session-token",
			"user":{"id":"u-1","name":"Оператор","role":"college_admin"}}}`)
	})

	var hookCalls atomic.Int32
	client := newTestClient(t, server.URL, mockTokenSourceError(), func() {
		hookCalls.Add(1)
	})

	// Неверный пароль: 401, но страж сессии молчит.
	_, err := client.Login(context.Background(), "op@edu.local", "wrong")
	if !IsKind(err, KindAuth) {
		t.Fatalf("ожидалась ошибка KindAuth, получена %v", err)
	}
	if hookCalls.Load() != 0 {
		t.Error("401 при входе не должен уведомлять страж сессии")
	}

	// Верный пароль.
	result, err := client.Login(context.Background(), "op@edu.local", "correct")
	if err != nil {
		t.Fatalf("Ошибка Login: %v", err)
	}
	if result.Token != "session-token" {
		t.Errorf("ожидался token=session-token, получен %s", result.Token)
	}
	if result.User.Role != "college_admin" {
		t.Errorf("ожидалась роль college_admin, получена %s", result.User.Role)
	}
}

// TestClient_NotFound проверяет классификацию 404.
func TestClient_NotFound(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success":false,"message":"материал не найден"}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	err := client.DeleteQuestionPaper(context.Background(), "qp-missing")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("ожидалась ошибка KindNotFound, получена %v", err)
	}
}

// TestClient_ServerError проверяет классификацию 5xx.
func TestClient_ServerError(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"message":"внутренняя ошибка"}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	err := client.DeleteQuestionPaper(context.Background(), "qp-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидалась *APIError, получена %v", err)
	}
	if apiErr.Kind != KindServer || apiErr.Status != http.StatusInternalServerError {
		t.Errorf("ожидался KindServer со статусом 500, получен %s/%d", apiErr.Kind, apiErr.Status)
	}
}

// TestClient_NetworkError проверяет классификацию недоступного сервера.
func TestClient_NetworkError(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", mockTokenSource("t"), nil)

	err := client.DeleteQuestionPaper(context.Background(), "qp-1")
	if !IsKind(err, KindNetwork) {
		t.Fatalf("ожидалась ошибка KindNetwork, получена %v", err)
	}
}

// TestClient_GETRetry проверяет повторные попытки GET при сетевой ошибке.
func TestClient_GETRetry(t *testing.T) {
	var requests atomic.Int32

	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n == 1 {
			// Первый запрос: обрываем соединение, имитируя сетевой сбой.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("httptest сервер должен поддерживать Hijacker")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"question_papers":[]}}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	resources, err := client.ListQuestionPapers(context.Background(), QuestionPaperFilter{})
	if err != nil {
		t.Fatalf("после повторной попытки ожидался успех: %v", err)
	}
	if len(resources) != 0 {
		t.Errorf("ожидался пустой список, получено %d", len(resources))
	}
	if requests.Load() != 2 {
		t.Errorf("ожидалось 2 запроса (сбой + повтор), было %d", requests.Load())
	}
}

// TestClient_NoRetryOnServerError проверяет, что ответ сервера
// не вызывает повторных попыток даже для GET.
func TestClient_NoRetryOnServerError(t *testing.T) {
	var requests atomic.Int32

	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false}`)
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	_, err := client.ListQuestionPapers(context.Background(), QuestionPaperFilter{})
	if !IsKind(err, KindServer) {
		t.Fatalf("ожидалась ошибка KindServer, получена %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("ожидался ровно 1 запрос, было %d", requests.Load())
	}
}

// TestClient_NoRetryOnMutations проверяет, что мутации не повторяются
// при сетевой ошибке.
func TestClient_NoRetryOnMutations(t *testing.T) {
	var requests atomic.Int32

	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("httptest сервер должен поддерживать Hijacker")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("hijack: %v", err)
		}
		conn.Close()
	})

	client := newTestClient(t, server.URL, mockTokenSource("t"), nil)

	err := client.DeleteQuestionPaper(context.Background(), "qp-1")
	if !IsKind(err, KindNetwork) {
		t.Fatalf("ожидалась ошибка KindNetwork, получена %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("мутация должна выполняться ровно один раз, было %d запросов", requests.Load())
	}
}

// TestClient_TokenSourceError проверяет отказ при недоступном токене.
func TestClient_TokenSourceError(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен быть отправлен")
	})

	client := newTestClient(t, server.URL, mockTokenSourceError(), nil)

	err := client.DeleteQuestionPaper(context.Background(), "qp-1")
	if !IsKind(err, KindAuth) {
		t.Fatalf("ожидалась ошибка KindAuth, получена %v", err)
	}
}

// TestNormalizeURL проверяет normalizeURL.
func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://api.edustore.local", "https://api.edustore.local"},
		{"https://api.edustore.local/", "https://api.edustore.local"},
		{"https://api.edustore.local///", "https://api.edustore.local"},
		{"http://localhost:8030", "http://localhost:8030"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeURL(tt.input)
			if result != tt.expected {
				t.Errorf("ожидалось %q, получено %q", tt.expected, result)
			}
		})
	}
}
