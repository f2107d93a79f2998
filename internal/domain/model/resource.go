// Пакет model — доменные типы каталога: ресурсы коллекций,
// черновики создаваемых записей, справочники.
package model

import (
	"time"

	"github.com/arturkryukov/edustore/admin-client/internal/domain/rbac"
)

// Attachment — вложение ресурса.
// URL == nil означает деградированную запись: ресурс на сервере есть,
// а файл к нему не загружен (вторая фаза не прошла).
type Attachment struct {
	// URL — постоянная ссылка на файл
	URL *string `json:"url"`
	// AccessURL — подписанная ссылка для скачивания (опционально)
	AccessURL *string `json:"access_url,omitempty"`
	// OriginalName — исходное имя загруженного файла
	OriginalName string `json:"original_name,omitempty"`
}

// Resource — запись каталога в клиентской коллекции.
// Идентификатор присваивает сервер: до успешного завершения первой
// фазы отправки ресурса не существует.
type Resource struct {
	// ID — серверный идентификатор записи
	ID string `json:"id"`
	// Module — раздел каталога, которому принадлежит запись
	Module rbac.Module `json:"module"`
	// Title — заголовок для отображения
	Title string `json:"title"`
	// Details — прочие поля записи из ответа сервера
	Details map[string]any `json:"details,omitempty"`
	// Attachment — вложение (nil URL — файл отсутствует)
	Attachment Attachment `json:"attachment"`
	// CreatedAt — время появления записи в коллекции
	CreatedAt time.Time `json:"created_at"`
}

// Degraded возвращает true, если запись существует без файла.
func (r *Resource) Degraded() bool {
	return r.Attachment.URL == nil
}

// Clone возвращает глубокую копию ресурса.
// Коллекция отдаёт наружу только копии.
func (r *Resource) Clone() *Resource {
	copied := *r
	if r.Details != nil {
		copied.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			copied.Details[k] = v
		}
	}
	if r.Attachment.URL != nil {
		u := *r.Attachment.URL
		copied.Attachment.URL = &u
	}
	if r.Attachment.AccessURL != nil {
		u := *r.Attachment.AccessURL
		copied.Attachment.AccessURL = &u
	}
	return &copied
}
