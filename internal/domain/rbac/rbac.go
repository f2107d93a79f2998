// Пакет rbac — ролевая модель доступа административного клиента.
// Определяет роли операторов, функциональные разделы (модули) и две
// статические матрицы: доступ на чтение и право изменения.
// Матрица изменения задаётся отдельно и не выводится из матрицы чтения:
// раздел может быть доступен для просмотра, но закрыт для изменения.
// Правило отказа: неизвестная роль или неизвестный модуль — доступа нет.
package rbac

import (
	"errors"
	"fmt"
)

// Role — роль оператора. Роли образуют линейный порядок по приоритету.
type Role string

// Роли в порядке возрастания привилегий.
const (
	// RoleNone — отсутствие аутентифицированного оператора.
	RoleNone Role = ""
	// RoleViewer — просмотр каталога без права изменения.
	RoleViewer Role = "viewer"
	// RoleLibrarian — ведение книг и экзаменационных материалов.
	RoleLibrarian Role = "librarian"
	// RoleCollegeAdmin — администратор учебного заведения.
	RoleCollegeAdmin Role = "college_admin"
	// RoleSuperAdmin — полный доступ ко всем разделам.
	RoleSuperAdmin Role = "super_admin"
)

// Module — функциональный раздел, защищённый матрицей доступа.
type Module string

// Разделы каталога. Значения совпадают с идентификаторами разделов
// в Edustore API.
const (
	ModuleBooks          Module = "books"
	ModuleQuestionPapers Module = "question_papers"
	ModuleColleges       Module = "colleges"
	ModuleStudents       Module = "students"
)

// ErrUnknownRole — строка не является известной ролью.
// Вызывающий обязан обработать этот случай явно: неизвестная роль
// не приравнивается молча к отсутствию роли.
var ErrUnknownRole = errors.New("неизвестная роль")

// rolePriority — приоритет роли для сравнения.
// Чем выше приоритет, тем больше привилегий.
var rolePriority = map[Role]int{
	RoleViewer:       10,
	RoleLibrarian:    20,
	RoleCollegeAdmin: 30,
	RoleSuperAdmin:   40,
}

// accessMatrix — статическая матрица доступа на чтение: роль → разделы.
// Отсутствие записи означает запрет (fail closed).
//
//	роль          | books | question_papers | colleges | students
//	super_admin   |   +   |        +        |    +     |    +
//	college_admin |   +   |        +        |    -     |    +
//	librarian     |   +   |        +        |    -     |    -
//	viewer        |   +   |        +        |    -     |    -
//
// Справочник учебных заведений ведёт только супер-администратор:
// остальные роли привязаны к одному заведению и реестр не просматривают.
var accessMatrix = map[Role]map[Module]bool{
	RoleSuperAdmin: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
		ModuleColleges:       true,
		ModuleStudents:       true,
	},
	RoleCollegeAdmin: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
		ModuleStudents:       true,
	},
	RoleLibrarian: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
	},
	RoleViewer: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
	},
}

// modifyMatrix — статическая матрица права изменения: роль → разделы.
// Задана отдельно от accessMatrix: право изменения — строгое подмножество
// права чтения (viewer читает книги, но не изменяет их).
var modifyMatrix = map[Role]map[Module]bool{
	RoleSuperAdmin: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
		ModuleColleges:       true,
		ModuleStudents:       true,
	},
	RoleCollegeAdmin: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
		ModuleStudents:       true,
	},
	RoleLibrarian: {
		ModuleBooks:          true,
		ModuleQuestionPapers: true,
	},
}

// HasAccess возвращает true, если роль имеет доступ на чтение раздела.
// Для RoleNone (нет оператора) и неизвестных ролей/разделов — всегда false.
func HasAccess(role Role, module Module) bool {
	return accessMatrix[role][module]
}

// CanModify возвращает true, если роль имеет право изменять раздел.
// Проверяется независимо от HasAccess по собственной матрице.
func CanModify(role Role, module Module) bool {
	return modifyMatrix[role][module]
}

// AccessDeniedMessage возвращает человекочитаемое сообщение об отказе
// в доступе для пары роль/раздел.
func AccessDeniedMessage(role Role, module Module) string {
	if role == RoleNone {
		return fmt.Sprintf("доступ к разделу %q требует входа в систему", module)
	}
	return fmt.Sprintf("роли %q недоступен раздел %q", role, module)
}

// ParseRole преобразует строку в роль.
// Неизвестное значение возвращает ErrUnknownRole с исходной строкой:
// решение о судьбе такого оператора принимает вызывающий.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := rolePriority[role]; !ok {
		return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Priority возвращает приоритет роли. Для неизвестной роли — 0.
func Priority(role Role) int {
	return rolePriority[role]
}

// Roles возвращает список известных ролей в порядке возрастания привилегий.
func Roles() []Role {
	return []Role{RoleViewer, RoleLibrarian, RoleCollegeAdmin, RoleSuperAdmin}
}
