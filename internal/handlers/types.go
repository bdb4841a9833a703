package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Result is the envelope every endpoint responds with. Backend errors
// never escape raw: handlers map failures into Error and an HTTP
// status, and the client renders the message as-is.
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondOK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Result{Success: true, Data: data})
}

func respondCreated(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Result{Success: true, Data: data})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, Result{Success: false, Error: message})
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}

func getUintFromContext(c echo.Context, key string) uint {
	val := c.Get(key)
	if val == nil {
		return 0
	}
	uintVal, ok := val.(uint)
	if !ok {
		return 0
	}
	return uintVal
}
