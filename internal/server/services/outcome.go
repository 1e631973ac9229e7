package services

import (
	"net/http"

	"github.com/dmitrijs2005/memberauth/internal/server/auth"
)

// OutcomeCode classifies the result of an authentication operation.
// Business rejections are outcomes, not errors.
type OutcomeCode int

const (
	OutcomeOK OutcomeCode = iota
	OutcomeInvalidEmail
	OutcomeInvalidPassword
	OutcomeConflict
	OutcomeNotFound
	OutcomeUnauthorized
)

const (
	MsgSuccess             = "success"
	MsgInvalidEmail        = "invalid email"
	MsgInvalidPassword     = "invalid password"
	MsgEmailExists         = "email already exists"
	MsgWrongCredentials    = "wrong email or password"
	MsgInvalidRefreshToken = "invalid refresh token"
	MsgRefreshTokenExpired = "refresh token expired"
)

func (c OutcomeCode) String() string {
	switch c {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalidEmail:
		return "invalid_email"
	case OutcomeInvalidPassword:
		return "invalid_password"
	case OutcomeConflict:
		return "conflict"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Outcome is what Join, Login, Refresh and Logout report to the transport.
// Tokens is set only for successful login and refresh.
type Outcome struct {
	Code    OutcomeCode
	Message string
	Tokens  *auth.TokenPair
}

func (o Outcome) OK() bool { return o.Code == OutcomeOK }

// HTTPStatus maps the outcome onto an HTTP status code.
func (o Outcome) HTTPStatus() int {
	switch o.Code {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeInvalidEmail, OutcomeInvalidPassword:
		return http.StatusBadRequest
	case OutcomeConflict:
		return http.StatusConflict
	case OutcomeNotFound:
		return http.StatusNotFound
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func ok(tokens *auth.TokenPair) Outcome {
	return Outcome{Code: OutcomeOK, Message: MsgSuccess, Tokens: tokens}
}

func reject(code OutcomeCode, msg string) Outcome {
	return Outcome{Code: code, Message: msg}
}
