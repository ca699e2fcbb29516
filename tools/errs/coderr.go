package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the wire error shape for the REST surface.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{Code: code, Msg: msg}
}

func (e *CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// WrapMsg attaches a detail and a call-site stack.
func (e *CodeError) WrapMsg(msg string) error {
	out := e.WithDetail(msg)
	return errors.WithStack(&out)
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce != nil && ce.Code == e.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Wrap / New re-export pkg/errors so call sites only import this package.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }
func New(msg string) error             { return errors.New(msg) }

var (
	ErrArgs           = NewCodeError(1001, "invalid argument")
	ErrTokenInvalid   = NewCodeError(1101, "token invalid")
	ErrTokenExpired   = NewCodeError(1102, "token expired")
	ErrRecordNotFound = NewCodeError(1201, "record not found")
	ErrRecordIsExist  = NewCodeError(1202, "record already exists")
	ErrInternal       = NewCodeError(1500, "internal error")
)
