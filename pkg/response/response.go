// Package response holds the JSON body shapes shared by every HTTP
// handler. Error bodies are deliberately generic; internal detail stays in
// the logs.
package response

import "github.com/gin-gonic/gin"

// ErrorBody is the only error shape clients see: { "error": "..." }.
type ErrorBody struct {
	Error string `json:"error"`
}

// Error writes an ErrorBody and aborts the request.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}

// OK writes a 200 with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(200, payload)
}
