package dto

import "net/http"

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Codes not listed here surface as 500.
var ErrorCodeHTTPStatus = map[string]int{
	"NOT_FOUND":            http.StatusNotFound,
	"INVALID_INPUT":        http.StatusBadRequest,
	"BAD_REQUEST":          http.StatusBadRequest,
	"ALREADY_EXISTS":       http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"INVALID_STATE":        http.StatusUnprocessableEntity,
	"STORAGE_ERROR":        http.StatusBadGateway,
	"STORAGE_TIMEOUT":      http.StatusGatewayTimeout,
	"INTERNAL_ERROR":       http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for a domain error code.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
