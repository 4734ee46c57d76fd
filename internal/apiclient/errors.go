package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized сервер отклонил токен (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAuthenticated у клиента нет токена для авторизованного запроса.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// StatusError ответ сервера с неуспешным HTTP статусом.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Is позволяет проверять 401 через errors.Is(err, ErrUnauthorized).
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Server сообщает, что ошибка на стороне сервера (5xx).
func (e *StatusError) Server() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// AuthError ошибка входа или регистрации: неверные учётные данные,
// занятый email, ошибка валидации на сервере.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed: status %d", e.StatusCode)
	}
	return "authentication failed: " + e.Message
}
