package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// AuthResponse ответ сервера на вход и регистрацию.
type AuthResponse struct {
	Token     string `json:"token"`
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Identity возвращает идентичность пользователя из ответа.
func (r *AuthResponse) Identity() models.UserIdentity {
	return models.UserIdentity{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// Login проверяет учётные данные. Отказ сервера возвращается как *AuthError.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	const op = "apiclient.Login"
	return c.authenticate(ctx, op, "/auth/login", models.Credentials{Email: email, Password: password})
}

// Register создаёт учётную запись и сразу выполняет вход.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*AuthResponse, error) {
	const op = "apiclient.Register"
	return c.authenticate(ctx, op, "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, op, path string, body any) (*AuthResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s: %w", op, statusError(resp))
		}
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	var out AuthResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &out, nil
}
