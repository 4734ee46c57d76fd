package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// SubmitContact отправляет сообщение через форму обратной связи. Вход не требуется.
func (c *Client) SubmitContact(ctx context.Context, req models.ContactRequest) error {
	const op = "apiclient.SubmitContact"

	resp, err := c.do(ctx, http.MethodPost, "/contact/submit", req, false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.ok() {
		return fmt.Errorf("%s: %w", op, statusError(resp))
	}
	return nil
}
