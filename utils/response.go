package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
func Response(c *gin.Context, code int, msg string, data interface{}) {
	resp := gin.H{
		"code": code,
		"msg":  msg,
	}
	if data != nil {
		resp["data"] = data
	}
	c.JSON(http.StatusOK, resp)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	Response(c, http.StatusOK, "success", data)
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"code": statusCode,
		"msg":  message,
	})
}
