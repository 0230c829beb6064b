// Пакет содержит определения ошибок редактора, возвращаемых клиенту: проверка входных данных,
// медиа ноды, загрузка изображений, сессии редактирования. Каждая ошибка имеет код, статус HTTP
// и описание на английском и русском.
//
// Основные возможности:
//   - Коды ошибок по группам: 1*** проверка данных, 2*** медиа, 3*** изображения, 4*** сессии, 5*** общие.
//   - Сравнение через errors.Is по коду, в том числе для отформатированных копий.
//   - Коды, кратные 1000, обозначают всю группу.
//   - Функция для форматирования сообщений об ошибках с использованием аргументов.
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	RuErr      string `json:"ru_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

// Is сравнивает ошибки по коду. Ошибка группы (код кратен 1000) совпадает с любой ошибкой этой группы.
func (e DefinedError) Is(target error) bool {
	t, ok := target.(DefinedError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code%1000 == 0 && t.Code/1000 == e.Code/1000
}

const (
	ImageMaxSizeMB = 5
)

var (
	// 1*** - validation errors
	ErrValidation           = DefinedError{Code: 1000, StatusCode: http.StatusBadRequest, Err: "validation failed: %s", RuErr: "Некорректные данные: %s"}
	ErrImageURLRequired     = DefinedError{Code: 1001, StatusCode: http.StatusBadRequest, Err: "image url is required", RuErr: "Укажите адрес изображения"}
	ErrVideoURLInvalid      = DefinedError{Code: 1002, StatusCode: http.StatusBadRequest, Err: "unsupported video url", RuErr: "Ссылка на видео не распознана"}
	ErrUnknownCommand       = DefinedError{Code: 1003, StatusCode: http.StatusBadRequest, Err: "unknown command %s", RuErr: "Неизвестная команда %s"}
	ErrCommandNotApplicable = DefinedError{Code: 1004, StatusCode: http.StatusConflict, Err: "command %s cannot be applied to the selection", RuErr: "Команду %s нельзя применить к выделению"}
	ErrInvalidSelection     = DefinedError{Code: 1005, StatusCode: http.StatusBadRequest, Err: "selection is out of document range", RuErr: "Выделение выходит за границы документа"}
	ErrInvalidAttribute     = DefinedError{Code: 1006, StatusCode: http.StatusBadRequest, Err: "invalid node attribute: %s", RuErr: "Некорректный атрибут: %s"}
	ErrInvalidPolicy        = DefinedError{Code: 1007, StatusCode: http.StatusBadRequest, Err: "invalid sanitizer policy", RuErr: "Некорректная политика очистки HTML"}
	ErrInvalidContent       = DefinedError{Code: 1008, StatusCode: http.StatusBadRequest, Err: "invalid document content", RuErr: "Некорректное содержимое документа"}

	// 2*** - media errors
	ErrNotMedia       = DefinedError{Code: 2001, StatusCode: http.StatusBadRequest, Err: "node is not an image or video", RuErr: "Выбранный элемент не является изображением или видео"}
	ErrHandleDisabled = DefinedError{Code: 2002, StatusCode: http.StatusBadRequest, Err: "resize handle %s is disabled", RuErr: "Маркер %s недоступен"}
	ErrDragActive     = DefinedError{Code: 2003, StatusCode: http.StatusConflict, Err: "another resize is in progress", RuErr: "Уже выполняется изменение размера"}
	ErrNoDrag         = DefinedError{Code: 2004, StatusCode: http.StatusConflict, Err: "no resize in progress", RuErr: "Изменение размера не начато"}
	ErrUnknownSize    = DefinedError{Code: 2005, StatusCode: http.StatusBadRequest, Err: "rendered size is required", RuErr: "Укажите текущий размер элемента"}
	ErrNodeChanged    = DefinedError{Code: 2006, StatusCode: http.StatusConflict, Err: "media node changed during resize", RuErr: "Элемент изменился во время изменения размера"}

	// 3*** - image errors
	ErrSizeLimit         = DefinedError{Code: 3001, StatusCode: http.StatusRequestEntityTooLarge, Err: "file size too large, max %s", RuErr: "Размер файла превышает %s"}
	ErrUnsupportedImage  = DefinedError{Code: 3002, StatusCode: http.StatusUnsupportedMediaType, Err: "file is not a supported image: %s", RuErr: "Файл не является изображением: %s"}
	ErrImageRead         = DefinedError{Code: 3003, StatusCode: http.StatusBadRequest, Err: "failed to read image", RuErr: "Не удалось прочитать изображение"}
	ErrBlobNotFound      = DefinedError{Code: 3004, StatusCode: http.StatusNotFound, Err: "blob not found or expired", RuErr: "Временный файл не найден или устарел"}
	ErrFileNotFound      = DefinedError{Code: 3005, StatusCode: http.StatusNotFound, Err: "file not found", RuErr: "Файл не найден"}
	ErrStorageDisabled   = DefinedError{Code: 3006, StatusCode: http.StatusServiceUnavailable, Err: "file storage is not configured", RuErr: "Файловое хранилище не настроено"}
	ErrImageUploadFailed = DefinedError{Code: 3007, StatusCode: http.StatusInternalServerError, Err: "failed to upload image", RuErr: "Не удалось загрузить изображение"}

	// 4*** - session errors
	ErrSessionNotFound = DefinedError{Code: 4001, StatusCode: http.StatusNotFound, Err: "editor session not found", RuErr: "Сессия редактора не найдена"}
	ErrSessionLimit    = DefinedError{Code: 4002, StatusCode: http.StatusTooManyRequests, Err: "too many editor sessions", RuErr: "Превышено количество открытых сессий редактора"}
	ErrStaleState      = DefinedError{Code: 4003, StatusCode: http.StatusConflict, Err: "document was changed, reload the state", RuErr: "Документ был изменен, обновите состояние"}
	ErrNothingToUndo   = DefinedError{Code: 4004, StatusCode: http.StatusConflict, Err: "nothing to %s", RuErr: "Нет действий для %s"}

	// 5*** - generic errors
	ErrGeneric       = DefinedError{Code: 5000, StatusCode: http.StatusBadRequest, Err: "Something went wrong. Please try again later or contact the support team.", RuErr: "Что-то пошло не так. Повторите попытку позже или обратитесь в службу поддержки"}
	ErrEntityToLarge = DefinedError{Code: 5010, StatusCode: http.StatusRequestEntityTooLarge, Err: "size exceeds the allowed limit", RuErr: "Размер запроса превышает допустимый."}
	ErrInvalidID     = DefinedError{Code: 5011, StatusCode: http.StatusBadRequest, Err: "invalid ID", RuErr: "Указан неверный ID"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.RuErr = fmt.Sprintf(e.RuErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}
