// directories.go — обработчики справочников /api/v1/colleges и
// /api/v1/students. Справочники читаются с сервера напрямую,
// без реактивной коллекции.
package handlers

import (
	"net/http"

	"github.com/arturkryukov/edustore/admin-client/internal/api/middleware"
	"github.com/arturkryukov/edustore/admin-client/internal/domain/model"
)

// collegeListResponse — ответ GET /api/v1/colleges.
type collegeListResponse struct {
	Colleges []model.College `json:"colleges"`
	Count    int             `json:"count"`
}

// studentListResponse — ответ GET /api/v1/students.
type studentListResponse struct {
	Students []model.Student `json:"students"`
	Count    int             `json:"count"`
}

// ListColleges — GET /api/v1/colleges.
func (h *APIHandler) ListColleges(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	colleges, err := h.directories.Colleges(r.Context(), role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collegeListResponse{Colleges: colleges, Count: len(colleges)})
}

// ListStudents — GET /api/v1/students.
func (h *APIHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())

	students, err := h.directories.Students(r.Context(), role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, studentListResponse{Students: students, Count: len(students)})
}
