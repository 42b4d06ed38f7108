package serializer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrorsKey - ключ для ошибок, относящихся ко всему запросу, а не к полю
const NonFieldErrorsKey = "non_field_errors"

const (
	MsgRatingOutOfRange = "rating must be between 1 and 5."
	MsgDuplicateReview  = "you have already left a review for this product."
	MsgFieldRequired    = "this field is required."
	MsgInvalidBody      = "invalid request body."
)

// ValidationError - единственный тип ошибки слоя представления.
// Errors: поле -> список сообщений, отдаётся клиенту как есть
type ValidationError struct {
	Errors map[string][]string `json:"errors"`
}

func newValidationError() *ValidationError {
	return &ValidationError{Errors: make(map[string][]string)}
}

// NewDuplicateReviewError используется и при проверке до записи,
// и при нарушении уникального индекса в хранилище
func NewDuplicateReviewError() *ValidationError {
	verr := newValidationError()
	verr.Add(NonFieldErrorsKey, MsgDuplicateReview)
	return verr
}

// NewInvalidBodyError - тело запроса не разбирается как JSON объект
func NewInvalidBodyError() *ValidationError {
	verr := newValidationError()
	verr.Add(NonFieldErrorsKey, MsgInvalidBody)
	return verr
}

func (e *ValidationError) Add(field, message string) {
	e.Errors[field] = append(e.Errors[field], message)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Has проверяет, есть ли у поля ошибка с указанным текстом
func (e *ValidationError) Has(field, message string) bool {
	for _, m := range e.Errors[field] {
		if m == message {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Errors[field], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError достаёт ValidationError из цепочки ошибок
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
