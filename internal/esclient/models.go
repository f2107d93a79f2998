package esclient

import "encoding/json"

// envelope — общий конверт всех ответов Edustore API.
// success:false означает отказ приложения даже при HTTP 200.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// LoginUser — данные оператора из ответа на вход.
type LoginUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// LoginResult — результат POST /auth/login.
type LoginResult struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// AttachmentInfo — результат загрузки файла к записи.
type AttachmentInfo struct {
	// ResourceID — идентификатор записи, к которой загружен файл.
	ResourceID string
	// URL — постоянная ссылка на файл.
	URL *string
	// AccessURL — подписанная ссылка для скачивания.
	AccessURL *string
	// OriginalName — исходное имя файла.
	OriginalName string
}

// QuestionPaperFilter — параметры GET /question-papers.
// Пустые значения не попадают в строку запроса.
type QuestionPaperFilter struct {
	Subject  string
	Year     string
	Semester string
	ExamType string
}

// BookFilter — параметры GET /books.
type BookFilter struct {
	Subject   string
	CollegeID string
}

// uploadPDFData — данные ответа POST /{module}/{id}/upload-pdf.
type uploadPDFData struct {
	QuestionPaperID string  `json:"question_paper_id,omitempty"`
	BookID          string  `json:"book_id,omitempty"`
	PDFURL          *string `json:"pdf_url"`
	SignedURL       *string `json:"signed_url,omitempty"`
	OriginalName    string  `json:"original_name,omitempty"`
}

// uploadCoverData — данные ответа POST /books/{id}/upload-cover.
type uploadCoverData struct {
	BookID       string  `json:"book_id"`
	CoverURL     *string `json:"cover_url"`
	OriginalName string  `json:"original_name,omitempty"`
}

// loginData — данные ответа POST /auth/login.
type loginData struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// recordData — конверты data с одиночной записью.
type questionPaperData struct {
	QuestionPaper map[string]any `json:"question_paper"`
}

type bookData struct {
	Book map[string]any `json:"book"`
}

// listData — конверты data со списками записей.
type questionPaperListData struct {
	QuestionPapers []map[string]any `json:"question_papers"`
}

type bookListData struct {
	Books []map[string]any `json:"books"`
}

type collegeListData struct {
	Colleges []collegeRecord `json:"colleges"`
}

type studentListData struct {
	Students []studentRecord `json:"students"`
}

// collegeRecord — запись справочника колледжей в ответе API.
type collegeRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// studentRecord — запись справочника студентов в ответе API.
type studentRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CollegeID string `json:"college_id,omitempty"`
}
