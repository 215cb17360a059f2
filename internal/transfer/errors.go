package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind - доменный вид ошибки, не зависящий от транспорта
type Kind int

const (
	// KindTransfer - любая другая ошибка удалённого вызова или транспорта
	KindTransfer Kind = iota
	KindBadRequest
	KindNotFound
	KindAlreadyExists
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BadRequest"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindNotImplemented:
		return "NotImplemented"
	default:
		return "TransferError"
	}
}

// StatusCode переводит вид ошибки в HTTP статус.
// Таблица полная: любому значению Kind соответствует ровно один статус.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error - ошибка фасада с видом, операцией и исходной причиной
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать с шаблонными ошибками ErrNotFound и т.п. по виду
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Cause == nil && t.Kind == e.Kind
}

// Шаблоны для errors.Is
var (
	ErrBadRequest     = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAlreadyExists  = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrNotImplemented = &Error{Kind: KindNotImplemented, Message: "not implemented"}
)

// NotFound создаёт ошибку отсутствующего источника
func NotFound(op, path string, cause error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Message: "not found", Cause: cause}
}

// AlreadyExists создаёт ошибку существующего получателя при overwrite=false
func AlreadyExists(op, path string, cause error) *Error {
	return &Error{Kind: KindAlreadyExists, Op: op, Path: path, Message: "already exists", Cause: cause}
}

// BadRequest создаёт ошибку некорректного параметра
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Failed оборачивает прочие ошибки удалённой стороны
func Failed(op, path string, cause error) *Error {
	return &Error{Kind: KindTransfer, Op: op, Path: path, Message: "failed", Cause: cause}
}

// KindOf возвращает вид ошибки. Неизвестные ошибки, в том числе истечение
// контекста, считаются KindTransfer.
func KindOf(err error) Kind {
	if err == nil {
		return KindTransfer
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransfer
}

// FromContext превращает ошибку отменённого контекста в ошибку передачи
func FromContext(op, path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransfer, Op: op, Path: path, Message: "timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransfer, Op: op, Path: path, Message: "canceled", Cause: err}
	}
	return err
}

// FromContextOrFailed - как FromContext, но прочие ошибки оборачиваются в Failed
func FromContextOrFailed(op, path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FromContext(op, path, err)
	}
	return Failed(op, path, err)
}
