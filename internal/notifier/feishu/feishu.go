// Package feishu posts text messages to a Feishu (Lark) custom bot webhook
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/notifier"
)

var _ notifier.Notifier = (*Feishu)(nil)

// Feishu implements the Notifier interface for a Feishu bot webhook
type Feishu struct {
	url    string
	client *http.Client
}

// New creates a Feishu notifier for the given bot webhook URL
func New(url string) *Feishu {
	return &Feishu{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *Feishu) Name() string { return "feishu" }

type textContent struct {
	Text string `json:"text"`
}

type textMessage struct {
	MsgType string      `json:"msg_type"`
	Content textContent `json:"content"`
}

func (f *Feishu) Send(ctx context.Context, alert core.Alert) error {
	body, err := json.Marshal(textMessage{
		MsgType: "text",
		Content: textContent{Text: alert.Message},
	})
	if err != nil {
		return fmt.Errorf("feishu: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("feishu: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("feishu: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feishu: server returned %d", resp.StatusCode)
	}
	return nil
}
