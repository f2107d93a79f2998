package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// validate — общий валидатор черновиков. Правила объявлены тегами полей.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Draft — черновик создаваемой записи: метаданные первой фазы отправки.
// Конкретный тип черновика определяет раздел каталога и полезную
// нагрузку запроса создания.
type Draft interface {
	// DraftModule — раздел каталога, в котором создаётся запись.
	DraftModule() rbac.Module
	// DraftTitle — заголовок для отображения и деградированных записей.
	DraftTitle() string
	// Validate — проверка метаданных до любого сетевого вызова.
	Validate() error
}

// QuestionPaperDraft — метаданные экзаменационного материала.
// JSON-теги совпадают с полями запроса POST /question-papers.
type QuestionPaperDraft struct {
	// Title — название материала
	Title string `json:"title" validate:"required"`
	// Subject — учебный предмет
	Subject string `json:"subject" validate:"required"`
	// Year — год экзамена
	Year int `json:"year" validate:"required,gte=1900,lte=2100"`
	// Semester — номер семестра
	Semester int `json:"semester" validate:"required,gte=1,lte=12"`
	// Description — описание (опционально)
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	// ExamType — тип экзамена (опционально)
	ExamType string `json:"exam_type,omitempty" validate:"omitempty,oneof=midterm final quiz practice"`
	// Marks — максимальный балл (опционально)
	Marks *int `json:"marks,omitempty" validate:"omitempty,gte=0"`
	// CollegeID — идентификатор учебного заведения (опционально)
	CollegeID string `json:"college_id,omitempty"`
}

// DraftModule реализует Draft.
func (d *QuestionPaperDraft) DraftModule() rbac.Module {
	return rbac.ModuleQuestionPapers
}

// DraftTitle реализует Draft.
func (d *QuestionPaperDraft) DraftTitle() string {
	return d.Title
}

// Validate проверяет обязательные поля и допустимые значения.
func (d *QuestionPaperDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("метаданные экзаменационного материала не прошли проверку: %w", err)
	}
	return nil
}

// BookDraft — метаданные книги.
// JSON-теги совпадают с полями запроса POST /books.
type BookDraft struct {
	// Title — название книги
	Title string `json:"title" validate:"required"`
	// Author — автор
	Author string `json:"author" validate:"required"`
	// Subject — учебный предмет (опционально)
	Subject string `json:"subject,omitempty"`
	// Description — описание (опционально)
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	// Edition — издание (опционально)
	Edition string `json:"edition,omitempty"`
	// Year — год издания (опционально)
	Year *int `json:"year,omitempty" validate:"omitempty,gte=1500,lte=2100"`
	// CollegeID — идентификатор учебного заведения (опционально)
	CollegeID string `json:"college_id,omitempty"`
}

// DraftModule реализует Draft.
func (d *BookDraft) DraftModule() rbac.Module {
	return rbac.ModuleBooks
}

// DraftTitle реализует Draft.
func (d *BookDraft) DraftTitle() string {
	return d.Title
}

// Validate проверяет обязательные поля и допустимые значения.
func (d *BookDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("метаданные книги не прошли проверку: %w", err)
	}
	return nil
}
