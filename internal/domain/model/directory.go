package model

// College — запись справочника учебных заведений.
type College struct {
	// ID — идентификатор заведения
	ID string `json:"id"`
	// Name — название
	Name string `json:"name"`
	// City — город (опционально)
	City string `json:"city,omitempty"`
}

// Student — запись справочника студентов.
type Student struct {
	// ID — идентификатор студента
	ID string `json:"id"`
	// Name — полное имя
	Name string `json:"name"`
	// Email — адрес электронной почты (опционально)
	Email string `json:"email,omitempty"`
	// CollegeID — заведение студента (опционально)
	CollegeID string `json:"college_id,omitempty"`
}
