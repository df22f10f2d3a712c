// Package response 统一 HTTP 响应信封 {detail, error, result}。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 响应信封。
type Envelope struct {
	Detail string `json:"detail"`
	Error  any    `json:"error"`
	Result any    `json:"result"`
}

// Success 200，result 为 data。
func Success(c *gin.Context, detail string, data any) {
	c.JSON(http.StatusOK, Envelope{Detail: detail, Result: data})
}

// Created 201
func Created(c *gin.Context, detail string, data any) {
	c.JSON(http.StatusCreated, Envelope{Detail: detail, Result: data})
}

// Raw 直接输出 data，不包信封。
func Raw(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// ErrorWithStatus 错误响应，errMsg 为空时 error 字段为 null。
func ErrorWithStatus(c *gin.Context, status int, detail, errMsg string) {
	env := Envelope{Detail: detail}
	if errMsg != "" {
		env.Error = errMsg
	}
	c.AbortWithStatusJSON(status, env)
}
