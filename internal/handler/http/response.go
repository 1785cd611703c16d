// Package httphandler 实现 REST API 的 Gin 处理器。
package httphandler

import "github.com/gin-gonic/gin"

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// SuccessResponse 返回统一格式的成功响应
func SuccessResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}
