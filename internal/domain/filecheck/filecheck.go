// Пакет filecheck — проверка файла-кандидата перед загрузкой.
// Чистые функции без сетевых и прочих побочных эффектов: проверка обязана
// полностью завершиться до первого сетевого вызова оркестратора, чтобы на
// сервере никогда не создавалась запись под файл, который будет отклонён.
//
// Порядок правил фиксирован: сначала тип (расширение), затем размер.
// При нескольких нарушениях сообщается только первое.
package filecheck

import (
	"io"
	"path/filepath"
	"strings"
)

// Kind — вид ошибки валидации.
type Kind string

const (
	// KindType — недопустимое расширение файла.
	KindType Kind = "TYPE"
	// KindSize — превышен допустимый размер.
	KindSize Kind = "SIZE"
)

// Message возвращает человекочитаемое описание ошибки валидации.
func (k Kind) Message() string {
	switch k {
	case KindType:
		return "недопустимый тип файла"
	case KindSize:
		return "превышен допустимый размер файла"
	default:
		return "файл не прошёл проверку"
	}
}

// Candidate — файл-кандидат на загрузку. Эфемерный: нигде не сохраняется,
// только проверяется и передаётся транспортному слою.
type Candidate struct {
	// Name — исходное имя файла, по нему определяется расширение.
	Name string
	// SizeBytes — размер файла в байтах.
	SizeBytes int64
	// Content — содержимое файла. Читается один раз при загрузке.
	Content io.Reader
}

// Result — результат проверки. Не содержит ссылки на ресурс:
// это функция только от кандидата.
type Result struct {
	// Valid — файл прошёл все правила профиля.
	Valid bool
	// Kind — вид первой нарушенной проверки (пусто, если Valid).
	Kind Kind
}

// Profile — набор правил проверки для одного типа вложений.
type Profile struct {
	// Label — имя профиля для логов и сообщений.
	Label string
	// Extensions — допустимые расширения в нижнем регистре, с точкой.
	Extensions []string
	// MaxSizeBytes — верхняя граница размера, включительно.
	MaxSizeBytes int64
}

// Профили вложений каталога.
var (
	// ProfilePDF — PDF-документы книг и экзаменационных материалов.
	// Граница 50 МиБ включительно: файл ровно в 52428800 байт допустим.
	ProfilePDF = Profile{
		Label:        "pdf",
		Extensions:   []string{".pdf"},
		MaxSizeBytes: 50 * 1024 * 1024,
	}

	// ProfileCoverImage — изображения обложек книг.
	ProfileCoverImage = Profile{
		Label:        "cover",
		Extensions:   []string{".jpg", ".jpeg", ".png"},
		MaxSizeBytes: 5 * 1024 * 1024,
	}
)

// Validate проверяет кандидата по профилю PDF-документов.
func Validate(c Candidate) Result {
	return ProfilePDF.Check(c)
}

// Check проверяет кандидата по правилам профиля.
// Тип проверяется раньше размера; побеждает первое нарушение.
func (p Profile) Check(c Candidate) Result {
	if !p.allowedExtension(c.Name) {
		return Result{Kind: KindType}
	}
	if c.SizeBytes > p.MaxSizeBytes {
		return Result{Kind: KindSize}
	}
	return Result{Valid: true}
}

// allowedExtension сравнивает расширение имени файла с допустимыми
// без учёта регистра.
func (p Profile) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
