package notifications

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const userAgent = "corrflow/1.0"

// ntfyService pushes rendered events to an ntfy topic URL.
type ntfyService struct {
	topicURL string
	client   *http.Client
}

// NewNtfy returns a Service posting events to an ntfy topic URL.
func NewNtfy(topicURL string, client *http.Client) Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &ntfyService{topicURL: strings.TrimSpace(topicURL), client: client}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.topicURL == "" {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	for key, value := range msg.headers() {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy post: %w", err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ntfy post: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// headers maps a message onto ntfy's publish headers. Titles are sent as
// RFC 2047 encoded words because Arabic text is not valid in a raw header.
func (m message) headers() map[string]string {
	h := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
	}
	if m.title != "" {
		h["Title"] = mime.QEncoding.Encode("utf-8", m.title)
	}
	if len(m.tags) > 0 {
		h["Tags"] = strings.Join(m.tags, ",")
	}
	if m.priority != "" && m.priority != "default" {
		h["Priority"] = m.priority
	}
	return h
}
