package inspection

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies service errors. Callers match on the sentinels below.
type Kind string

const (
	KindValidationFailed       Kind = "ValidationFailed"
	KindNotFound               Kind = "NotFound"
	KindInvalidTransition      Kind = "InvalidTransition"
	KindAlreadyTaken           Kind = "AlreadyTaken"
	KindConcurrentModification Kind = "ConcurrentModification"
	KindChecklistIncomplete    Kind = "ChecklistIncomplete"
	KindUpstreamTimeout        Kind = "UpstreamTimeout"
	KindRenderFailed           Kind = "RenderFailed"
	KindInvalidChecklistKey    Kind = "InvalidChecklistKey"
)

var (
	ErrValidationFailed       = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAlreadyTaken           = errors.New("article already taken")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrChecklistIncomplete    = errors.New("checklist incomplete")
	ErrUpstreamTimeout        = errors.New("upstream timeout")
	ErrRenderFailed           = errors.New("document render failed")
	ErrInvalidChecklistKey    = errors.New("invalid checklist key")
)

var kindSentinels = map[Kind]error{
	KindValidationFailed:       ErrValidationFailed,
	KindNotFound:               ErrNotFound,
	KindInvalidTransition:      ErrInvalidTransition,
	KindAlreadyTaken:           ErrAlreadyTaken,
	KindConcurrentModification: ErrConcurrentModification,
	KindChecklistIncomplete:    ErrChecklistIncomplete,
	KindUpstreamTimeout:        ErrUpstreamTimeout,
	KindRenderFailed:           ErrRenderFailed,
	KindInvalidChecklistKey:    ErrInvalidChecklistKey,
}

// Error carries enough detail for the caller to correct input or refresh state
type Error struct {
	Kind       Kind           `json:"error"`
	Message    string         `json:"message"`
	Field      string         `json:"field,omitempty"`
	ArticleIDs []int64        `json:"article_ids,omitempty"`
	Blocking   []BlockingItem `json:"blocking,omitempty"`
	Err        error          `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if len(e.ArticleIDs) > 0 {
		fmt.Fprintf(&b, " (articles %v)", e.ArticleIDs)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// HTTPStatus returns the appropriate HTTP status code for the error
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidationFailed, KindInvalidChecklistKey:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindAlreadyTaken, KindConcurrentModification:
		return http.StatusConflict
	case KindChecklistIncomplete:
		return http.StatusUnprocessableEntity
	case KindRenderFailed:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Message: message}
}

func notFoundError(what string, ids ...int64) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", ArticleIDs: ids}
}

func invalidTransitionError(id int64, from, to ArticleStatus) *Error {
	return &Error{
		Kind:       KindInvalidTransition,
		Message:    fmt.Sprintf("cannot move article from %s to %s", from, to),
		ArticleIDs: []int64{id},
	}
}

func concurrentModificationError(ids []int64, err error) *Error {
	return &Error{
		Kind:       KindConcurrentModification,
		Message:    "article status changed since it was read",
		ArticleIDs: ids,
		Err:        err,
	}
}

func upstreamTimeoutError(operation string, err error) *Error {
	return &Error{Kind: KindUpstreamTimeout, Message: operation + " timed out", Err: err}
}

// KindOf returns the kind of a service error, or "" for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
