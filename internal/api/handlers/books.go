// books.go — обработчики /api/v1/books.
// Список, двухфазная отправка, досылка PDF, загрузка обложки
// и удаление книг.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/edustore/admin-client/internal/api/errors"
	"github.com/arturkryukov/edustore/admin-client/internal/api/middleware"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
	"github.com/arturkryukov/edustore/admin-client/internal/esclient"
	"github.com/arturkryukov/edustore/admin-client/internal/service"
)

// ListBooks — GET /api/v1/books.
// Обновляет коллекцию списком с сервера и возвращает её снимок.
// Фильтры: subject, college_id.
func (h *APIHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	query := r.URL.Query()
	filter := esclient.BookFilter{
		Subject:   query.Get("subject"),
		CollegeID: query.Get("college_id"),
	}

	items, err := h.pipeline.RefreshBooks(r.Context(), role, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resourceListResponse{Items: items, Count: len(items)})
}

// CreateBook — POST /api/v1/books.
// Принимает multipart-форму: поля метаданных и необязательную файловую
// часть file. Ключ отправки — заголовок X-Submission-Token.
func (h *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}

	draft, err := bookDraftFromForm(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	file, closeFile, err := formCandidate(r, "file")
	if err != nil {
		apierrors.ValidationError(w, "Некорректная файловая часть: "+err.Error())
		return
	}
	defer closeFile()

	result, err := h.pipeline.Submit(r.Context(), service.SubmitParams{
		Key:   submissionKey(r),
		Role:  role,
		Draft: draft,
		File:  file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSubmitOutcome(w, result)
}

// AttachBookPDF — POST /api/v1/books/{id}/pdf.
// Досылает PDF к ранее созданной книге.
func (h *APIHandler) AttachBookPDF(w http.ResponseWriter, r *http.Request) {
	h.attachBookFile(w, r, service.AttachPDF)
}

// AttachBookCover — POST /api/v1/books/{id}/cover.
// Загружает обложку книги: jpg, jpeg или png до 5 МиБ.
func (h *APIHandler) AttachBookCover(w http.ResponseWriter, r *http.Request) {
	h.attachBookFile(w, r, service.AttachCover)
}

// attachBookFile — общая вторая фаза для PDF и обложки книги.
func (h *APIHandler) attachBookFile(w http.ResponseWriter, r *http.Request, kind service.AttachKind) {
	role := middleware.RoleFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}

	file, closeFile, err := formCandidate(r, "file")
	if err != nil {
		apierrors.ValidationError(w, "Некорректная файловая часть: "+err.Error())
		return
	}
	defer closeFile()
	if file == nil {
		apierrors.ValidationError(w, "Файловая часть file обязательна")
		return
	}

	result, err := h.pipeline.Attach(r.Context(), service.AttachParams{
		Key:        submissionKey(r),
		Role:       role,
		Module:     rbac.ModuleBooks,
		ResourceID: id,
		Kind:       kind,
		File:       *file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeAttachOutcome(w, rbac.ModuleBooks, result)
}

// DeleteBook — DELETE /api/v1/books/{id}.
// Запись исчезает из коллекции только после подтверждения сервера.
func (h *APIHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	result, err := h.pipeline.Delete(r.Context(), service.DeleteParams{
		Role:       role,
		Module:     rbac.ModuleBooks,
		ResourceID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeDeleteOutcome(w, result)
}

// bookDraftFromForm собирает черновик книги из полей multipart-формы.
func bookDraftFromForm(r *http.Request) (*model.BookDraft, error) {
	draft := &model.BookDraft{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Author:      strings.TrimSpace(r.FormValue("author")),
		Subject:     r.FormValue("subject"),
		Description: r.FormValue("description"),
		Edition:     r.FormValue("edition"),
		CollegeID:   r.FormValue("college_id"),
	}

	if v := r.FormValue("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("поле year должно быть целым числом: %q", v)
		}
		draft.Year = &year
	}

	return draft, nil
}
