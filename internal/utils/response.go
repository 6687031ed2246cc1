package utils

import "github.com/gin-gonic/gin"

func ErrorResponse(message, details string) gin.H {
	body := gin.H{
		"success": false,
		"error":   message,
	}
	if details != "" {
		body["details"] = details
	}
	return body
}

func SuccessResponse(message string, data interface{}) gin.H {
	return gin.H{
		"success": true,
		"message": message,
		"data":    data,
	}
}
