package protocol

import "fmt"

// Kind classifies a failed request.  Every error response carries exactly
// one kind, rendered as the "code" field.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindNotFound
	KindConflict
	KindStoreFailure
	KindUnknownAction
	KindRateLimited
)

var kindCodes = map[Kind]string{
	KindBadRequest:    "bad_request",
	KindUnauthorized:  "unauthorized",
	KindNotFound:      "not_found",
	KindConflict:      "conflict",
	KindStoreFailure:  "store_failure",
	KindUnknownAction: "unknown_action",
	KindRateLimited:   "rate_limited",
}

// Code is the wire name of the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return "internal"
}

func (k Kind) String() string { return k.Code() }

// Error is a request failure that is reported to the client.  Message is
// the human readable text; Detail is only set for store failures.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind.Code(), e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

// Response renders the error envelope.
func (e *Error) Response() Response {
	r := Response{"status": StatusError, "message": e.Message, "code": e.Kind.Code()}
	if e.Detail != "" {
		r["detail"] = e.Detail
	}
	return r
}

func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

func Unauthorized() *Error { return &Error{Kind: KindUnauthorized, Message: "login required"} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func UnknownAction() *Error { return &Error{Kind: KindUnknownAction, Message: "unknown action"} }

func RateLimited() *Error { return &Error{Kind: KindRateLimited, Message: "rate limit exceeded"} }

// StoreFailure wraps an unexpected storage error.
func StoreFailure(err error) *Error {
	e := &Error{Kind: KindStoreFailure, Message: "db error"}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// InvalidJSON is sent once before a connection with a broken frame is
// closed.
func InvalidJSON() *Error { return BadRequest("invalid JSON") }

// TooLarge is sent once before a connection whose request exceeded the
// size limit is closed.
func TooLarge() *Error { return BadRequest(ErrFrameTooLarge.Error()) }
