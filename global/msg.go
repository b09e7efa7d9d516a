package global

import (
	"errors"
	"net/http"

	"PSocial/tools/errs"
)

// Msg is the JSON envelope of every REST response.
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail renders err as an envelope. Only validation and not-found details are
// shown to the caller.
func Fail(err error) *Msg {
	var ce errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternal
	}
	m := &Msg{Code: ce.Code, Msg: ce.Msg}
	switch ce.Code {
	case errs.ValidationError, errs.NotFound, errs.Unauthorized:
		if ce.Detail != "" {
			m.Msg = ce.Detail
		}
	}
	return m
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(err error) int {
	switch errs.CodeOf(err) {
	case 0:
		return http.StatusOK
	case errs.ValidationError:
		return http.StatusBadRequest
	case errs.Unauthorized:
		return http.StatusUnauthorized
	case errs.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
