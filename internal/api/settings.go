package api

import (
	"context"
	"net/http"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// GetSettings returns every stored setting.
func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	settings := models.Settings{}
	if _, err := c.doJSON(ctx, "get settings", http.MethodGet, "/settings", nil, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSetting stores one key/value pair.
func (c *Client) SaveSetting(ctx context.Context, key, value string) (models.MessageResult, error) {
	var result models.MessageResult
	body := struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Key: key, Value: value}
	_, err := c.doJSON(ctx, "save setting", http.MethodPost, "/settings", body, &result)
	return result, err
}

// ApplySettings makes the server reload its settings.
func (c *Client) ApplySettings(ctx context.Context) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "apply settings", http.MethodPost, "/settings/apply", nil, &result)
	return result, err
}

// TelegramTest is the payload of a Telegram connectivity test.
type TelegramTest struct {
	Token  string `json:"token"`
	ChatID string `json:"chat_id"`
	Proxy  string `json:"proxy"`
}

// TestTelegram sends a test notification with the given credentials.
func (c *Client) TestTelegram(ctx context.Context, test TelegramTest) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "test telegram", http.MethodPost, "/test-tg", test, &result)
	return result, err
}
