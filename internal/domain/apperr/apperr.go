// Package apperr defines the error taxonomy shared by domain services and
// the HTTP layer.
package apperr

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	DiscountRejected
	Unauthorized
	Forbidden
	NotFound
	Conflict
	InvalidSignature
	Upstream
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case DiscountRejected:
		return "discount_rejected"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidSignature:
		return "invalid_signature"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Machine codes returned to clients.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeAdminRequired        = "ADMIN_ACCESS_REQUIRED"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidItems         = "INVALID_ITEMS"
	CodeInvalidItem          = "INVALID_ITEM"
	CodeMissingShipping      = "MISSING_SHIPPING_FIELDS"
	CodeInvalidDiscount      = "INVALID_DISCOUNT_CODE"
	CodeMissingPaymentFields = "MISSING_PAYMENT_FIELDS"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeUserExists           = "USER_EXISTS"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeUserBanned           = "USER_BANNED"
	CodeGoogleAuthFailed     = "GOOGLE_AUTH_FAILED"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeDiscountNotFound     = "DISCOUNT_NOT_FOUND"
	CodeDiscountExists       = "DISCOUNT_EXISTS"
	CodeCartNotFound         = "CART_NOT_FOUND"
	CodeWishlistNotFound     = "WISHLIST_NOT_FOUND"
	CodeInvalidReview        = "INVALID_REVIEW_INPUT"
	CodeInvalidQuery         = "INVALID_QUERY"
	CodeIllegalTransition    = "ILLEGAL_STATUS_TRANSITION"
	CodeGatewayFailure       = "PAYMENT_GATEWAY_ERROR"
	CodeUpstreamTimeout      = "UPSTREAM_TIMEOUT"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target with a
// code additionally requires the code to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// New returns a classified error.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it as the cause.
func Wrap(err error, kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append([]string(nil), details...)
	return &cp
}

// Sentinel kinds for errors.Is checks.
var (
	ErrInvalidInput     = &Error{Kind: InvalidInput}
	ErrUnauthorized     = &Error{Kind: Unauthorized}
	ErrForbidden        = &Error{Kind: Forbidden}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrConflict         = &Error{Kind: Conflict}
	ErrInvalidSignature = &Error{Kind: InvalidSignature}
	ErrUpstream         = &Error{Kind: Upstream}
)

// KindOf extracts the Kind of err. Errors produced by context deadlines are
// reported as Upstream; unclassified errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var kinded interface{ ErrorKind() Kind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Upstream
	}
	return Internal
}
