// Package apperr defines the error kinds surfaced by BeatSpace operations
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindInvalidTransition
	KindInvariantViolation
	KindConflict
	KindAssetUnavailable
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationFailed"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindInvariantViolation:
		return "InvariantViolation"
	case KindConflict:
		return "Conflict"
	case KindAssetUnavailable:
		return "AssetUnavailable"
	case KindUpstream:
		return "UpstreamFailure"
	default:
		return "Internal"
	}
}

// Error is a domain error. Two errors match under errors.Is when their kinds
// agree and the target either carries no message or the same message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Kind sentinels. Match any error of the kind.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrAssetUnavailable   = &Error{Kind: KindAssetUnavailable}
	ErrUpstream           = &Error{Kind: KindUpstream}
)

// Named domain failures.
var (
	ErrAssetNotFound    = New(KindNotFound, "asset not found")
	ErrRequestNotFound  = New(KindNotFound, "offer request not found")
	ErrCampaignNotFound = New(KindNotFound, "campaign not found")
	ErrUserNotFound     = New(KindNotFound, "user not found")
	ErrNotBuyer         = New(KindForbidden, "only buyers can perform this action")
	ErrNotOwner         = New(KindForbidden, "not the owner of this resource")
	ErrNotEditable      = New(KindInvalidTransition, "offer request is not editable in its current status")
	ErrRequestTerminal  = New(KindInvalidTransition, "offer request is already finalized")
	ErrAssetNotFree     = New(KindAssetUnavailable, "asset is not available for offers")
	ErrStaleState       = New(KindConflict, "state changed concurrently, retry the operation")
	ErrEmailTaken       = New(KindValidation, "email already registered")
)

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error onto the status code surfaced by the transport.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInvalidTransition, KindConflict, KindAssetUnavailable, KindInvariantViolation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the client-visible message for err.
func Detail(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindUnauthorized:
		return "Could not validate credentials"
	case KindForbidden:
		return "Not enough permissions"
	case KindInternal:
		return "Internal server error"
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}
