package workflow

import "errors"

// Виды доменных ошибок
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)

// Error доменная ошибка с видом и сообщением для клиента
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func validationError(message string) error { return newError(ErrValidation, message) }
func notFound(message string) error        { return newError(ErrNotFound, message) }
func forbidden(message string) error       { return newError(ErrForbidden, message) }
func invalidState(message string) error    { return newError(ErrInvalidState, message) }
func conflict(message string) error        { return newError(ErrConflict, message) }
