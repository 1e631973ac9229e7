package httpapi

import (
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest = "invalid request"
	msgInternalError  = "internal error"
	msgUnauthorized   = "unauthorized"
)

// Response is the envelope of every reply. Status repeats the HTTP status code.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// TokenData is the payload of a successful login or refresh.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type MemberData struct {
	MemberID string `json:"memberId"`
	Email    string `json:"email"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Status: status, Message: message, Data: data})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Status: status, Message: message})
}
