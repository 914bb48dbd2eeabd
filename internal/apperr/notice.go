package apperr

import "errors"

// Notice types
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// Notice is the transient message shown to the user after an action
type Notice struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Success builds a success notice
func Success(title, msg string) Notice {
	return Notice{Type: NoticeSuccess, Title: title, Message: msg}
}

// Info builds an informational notice
func Info(title, msg string) Notice {
	return Notice{Type: NoticeInfo, Title: title, Message: msg}
}

var titles = map[Kind]string{
	KindValidation:           "Помилка",
	KindAuthRequired:         "Доступ заборонено",
	KindForbidden:            "Доступ заборонено",
	KindUploadFailed:         "Помилка завантаження",
	KindFetchFailed:          "Помилка завантаження",
	KindNotFound:             "Не знайдено",
	KindConflict:             "Конфлікт редагування",
	KindConfirmationRequired: "Потрібне підтвердження",
	KindUnknown:              "Помилка",
}

// NoticeFor converts err into an error notice. Unknown errors get a generic
// message; their details stay in the logs.
func NoticeFor(err error) Notice {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindUnknown {
		return Notice{Type: NoticeError, Title: titles[KindUnknown], Message: "Сталася помилка. Спробуйте ще раз."}
	}
	return Notice{Type: NoticeError, Title: titles[e.Kind], Message: e.Message}
}

// RedirectFor returns where the client should navigate after err, if anywhere
func RedirectFor(err error) string {
	switch KindOf(err) {
	case KindAuthRequired:
		return "/login"
	case KindForbidden:
		return "/"
	}
	return ""
}
