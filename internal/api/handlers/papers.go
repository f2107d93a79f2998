// papers.go — обработчики /api/v1/question-papers.
// Список, двухфазная отправка, досылка PDF и удаление
// экзаменационных материалов.
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

// ListQuestionPapers — GET /api/v1/question-papers.
// Обновляет коллекцию списком с сервера и возвращает её снимок.
// Фильтры: subject, year, semester, exam_type.
func (h *APIHandler) ListQuestionPapers(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	query := r.URL.Query()
	filter := esclient.QuestionPaperFilter{
		Subject:  query.Get("subject"),
		Year:     query.Get("year"),
		Semester: query.Get("semester"),
		ExamType: query.Get("exam_type"),
	}

	items, err := h.pipeline.RefreshQuestionPapers(r.Context(), role, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resourceListResponse{Items: items, Count: len(items)})
}

// CreateQuestionPaper — POST /api/v1/question-papers.
// Принимает multipart-форму: поля метаданных и необязательную файловую
// часть file. Ключ отправки — заголовок X-Submission-Token.
func (h *APIHandler) CreateQuestionPaper(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}

	draft, err := questionPaperDraftFromForm(r)
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

// AttachQuestionPaperPDF — POST /api/v1/question-papers/{id}/pdf.
// Досылает PDF к ранее созданной записи. Новая запись не создаётся:
// повтор неудачной второй фазы выполняется только через этот endpoint.
func (h *APIHandler) AttachQuestionPaperPDF(w http.ResponseWriter, r *http.Request) {
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
		Module:     rbac.ModuleQuestionPapers,
		ResourceID: id,
		Kind:       service.AttachPDF,
		File:       *file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeAttachOutcome(w, rbac.ModuleQuestionPapers, result)
}

// DeleteQuestionPaper — DELETE /api/v1/question-papers/{id}.
// Запись исчезает из коллекции только после подтверждения сервера.
func (h *APIHandler) DeleteQuestionPaper(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	result, err := h.pipeline.Delete(r.Context(), service.DeleteParams{
		Role:       role,
		Module:     rbac.ModuleQuestionPapers,
		ResourceID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeDeleteOutcome(w, result)
}

// questionPaperDraftFromForm собирает черновик из полей multipart-формы.
// Ошибки приведения типов возвращаются до обращения к конвейеру.
func questionPaperDraftFromForm(r *http.Request) (*model.QuestionPaperDraft, error) {
	draft := &model.QuestionPaperDraft{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Subject:     strings.TrimSpace(r.FormValue("subject")),
		Description: r.FormValue("description"),
		ExamType:    r.FormValue("exam_type"),
		CollegeID:   r.FormValue("college_id"),
	}

	if v := r.FormValue("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("поле year должно быть целым числом: %q", v)
		}
		draft.Year = year
	}
	if v := r.FormValue("semester"); v != "" {
		semester, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("поле semester должно быть целым числом: %q", v)
		}
		draft.Semester = semester
	}
	if v := r.FormValue("marks"); v != "" {
		marks, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("поле marks должно быть целым числом: %q", v)
		}
		draft.Marks = &marks
	}

	return draft, nil
}
