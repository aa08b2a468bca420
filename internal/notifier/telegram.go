package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIBase is the public Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// TelegramNotifier talks to the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
	Client   *resty.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, apiBase, proxyURL string) *TelegramNotifier {
	client := resty.New()
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  strings.TrimRight(apiBase, "/"),
		Client:   client,
	}
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *TelegramNotifier) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.BotToken, method)
}

// call posts body to a Bot API method and decodes the result into out.
func (t *TelegramNotifier) call(ctx context.Context, method string, body any, out any) error {
	resp, err := t.Client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(t.methodURL(method))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("telegram %s: status %d, body: %s", method, resp.StatusCode(), resp.String())
	}
	if resp.IsError() || !env.OK {
		return fmt.Errorf("telegram API error: %s: status %d: %s", method, resp.StatusCode(), env.Description)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Send sends an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.SendTo(ctx, t.ChatID, text)
}

// SendTo sends an HTML message to chatID. Each message is attempted once.
func (t *TelegramNotifier) SendTo(ctx context.Context, chatID, text string) error {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if err := t.call(ctx, "sendMessage", payload, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// DownloadFile fetches an uploaded file by id and returns its bytes and MIME type.
func (t *TelegramNotifier) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := t.call(ctx, "getFile", map[string]string{"file_id": fileID}, &file); err != nil {
		return nil, "", err
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("telegram getFile: no file_path for %s", fileID)
	}

	resp, err := t.Client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/file/bot%s/%s", t.APIBase, t.BotToken, file.FilePath))
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode())
	}
	data := resp.Body()
	return data, detectMIME(resp.Header().Get("Content-Type"), data), nil
}

// detectMIME prefers a specific Content-Type header and sniffs the bytes otherwise.
func detectMIME(header string, data []byte) string {
	ct := strings.TrimSpace(strings.Split(header, ";")[0])
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(data)
}
