// Package hubclient is the HTTP client producers and pollers use to talk to
// the command hub.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
)

const (
	DefaultBaseURL       = "http://127.0.0.1:8000"
	DefaultPushTimeout   = 50 * time.Millisecond
	DefaultStatusTimeout = 2 * time.Second
)

// ErrProducerUnavailable means the hub could not be reached in time.
var ErrProducerUnavailable = errors.New("hub unavailable")

// Client talks to one hub.
type Client struct {
	BaseURL string
	// Timeout bounds each push.
	Timeout time.Duration
	// StatusTimeout bounds each status pull.
	StatusTimeout time.Duration
	HTTP          *http.Client
}

// New creates a client. Empty or non-positive values select the defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Timeout:       timeout,
		StatusTimeout: DefaultStatusTimeout,
		HTTP:          &http.Client{},
	}
}

type pushBody struct {
	Action command.Action `json:"action"`
	Text   string         `json:"text,omitempty"`
	Source command.Source `json:"source"`
}

// StatusResponse is the hub's view of the current command.
type StatusResponse struct {
	Action     command.Action `json:"action"`
	Text       string         `json:"text"`
	Source     command.Source `json:"source"`
	Age        float64        `json:"age"`
	Transcript string         `json:"transcript"`
	Status     string         `json:"status"`
	Seq        uint64         `json:"seq"`
}

// Push sends one command. Transport failures and timeouts wrap
// ErrProducerUnavailable; a rejected command returns the hub's message.
func (c *Client) Push(ctx context.Context, action command.Action, text string, source command.Source) error {
	body, err := json.Marshal(pushBody{Action: action, Text: text, Source: source})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/command", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProducerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Send pushes without reporting failure. Producers never retry: the next
// frame or utterance pushes a fresh command.
func (c *Client) Send(ctx context.Context, action command.Action, text string, source command.Source) {
	if err := c.Push(ctx, action, text, source); err != nil {
		logging.Debugw("push dropped", "action", action, "source", source, "err", err)
	}
}

// Status pulls the current command. One-shot commands are consumed by the
// hub, so only the UI poller should call this.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse

	timeout := c.StatusTimeout
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status", nil)
	if err != nil {
		return out, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrProducerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode status: %w", err)
	}
	return out, nil
}

func statusError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return fmt.Errorf("hub returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("hub returned %d", resp.StatusCode)
}
