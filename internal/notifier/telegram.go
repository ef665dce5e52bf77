package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Telegram 通知器：共识信号与漂移告警推送到指定群/频道。
// 失败线性退避重试，重试耗尽返回最后一次错误。
type Telegram struct {
	token   string
	chatID  string
	client  *http.Client
	retries int
	apiBase string
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		token:   botToken,
		chatID:  chatID,
		client:  &http.Client{Timeout: 15 * time.Second},
		retries: 3,
		apiBase: "https://api.telegram.org",
	}
}

func (t *Telegram) SendText(text string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram notifier: token/chat_id not configured")
	}
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	var lastErr error
	for attempt := 1; attempt <= t.retries; attempt++ {
		if lastErr = t.post(url, body); lastErr == nil {
			return nil
		}
		if attempt < t.retries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return lastErr
}

func (t *Telegram) post(url string, body []byte) error {
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return nil
}
