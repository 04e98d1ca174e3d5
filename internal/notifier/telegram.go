package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirphl/mlsignal/internal/utils"
)

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	BaseURL string
	Retries int
	Delay   time.Duration

	client *http.Client
	log    zerolog.Logger
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration) *TelegramNotifier {
	if retries < 1 {
		retries = 1
	}
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		BaseURL: defaultTelegramAPI,
		Retries: retries,
		Delay:   delay,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     utils.Component("notifier"),
	}
}

// Send posts msg to the chat, retrying failed attempts after Delay.
func (t *TelegramNotifier) Send(ctx context.Context, msg string) error {
	var err error
	for attempt := 1; attempt <= t.Retries; attempt++ {
		if err = t.send(ctx, msg); err == nil {
			return nil
		}
		t.log.Warn().Err(err).Int("attempt", attempt).Int("retries", t.Retries).Msg("Telegram send failed")
		if attempt == t.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.Delay):
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", t.Retries, err)
}

func (t *TelegramNotifier) send(ctx context.Context, msg string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	form := url.Values{
		"chat_id": {t.ChatID},
		"text":    {msg},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}
