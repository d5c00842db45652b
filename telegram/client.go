package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/edmondantes/salary-bot/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
)

// Settings configures both the raw getUpdates client and the outbound bot.
type Settings struct {
	Token  string
	APIURL string
}

// NewBot constructs a telebot instance used only for outbound calls.
// Updates are pulled by Client/Fetcher instead of telebot's poller, so the
// returned bot is never started.
func NewBot(s Settings) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  s.Token,
		URL:    s.APIURL,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// Client performs raw Bot API calls that need explicit request contexts.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient builds a getUpdates client for the given API host and token.
func NewClient(s Settings) *Client {
	base := strings.TrimRight(s.APIURL, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Client{
		token:   s.Token,
		baseURL: base,
		http:    buildPollClient(),
	}
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type getUpdatesRequest struct {
	Offset  *int64 `json:"offset,omitempty"`
	Timeout int    `json:"timeout"`
}

// Fetch performs one getUpdates call. The server holds the request up to
// timeoutSec waiting for new updates; a nil offset asks for the oldest
// unconfirmed ones. The client-side deadline is a multiple of the server
// wait so that a healthy long poll is never interrupted locally.
func (c *Client) Fetch(ctx context.Context, offset *int64, timeoutSec int) ([]tele.Update, error) {
	if timeoutSec < 0 {
		timeoutSec = 0
	}
	wait := timeoutSec
	if wait == 0 {
		wait = 5
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(wait)*5*time.Second)
	defer cancel()

	body, err := json.Marshal(getUpdatesRequest{Offset: offset, Timeout: timeoutSec})
	if err != nil {
		return nil, fmt.Errorf("telegram: encode getUpdates: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: build getUpdates request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: read getUpdates response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates response: %w", err)
	}
	if !parsed.Ok {
		return nil, fmt.Errorf("telegram: getUpdates failed (%d): %s", parsed.ErrorCode, parsed.Description)
	}

	var updates []tele.Update
	if err := json.Unmarshal(parsed.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}

// DeleteWebhook removes a configured webhook so getUpdates does not conflict.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	url := fmt.Sprintf("%s/bot%s/deleteWebhook", c.baseURL, c.token)
	body := "drop_pending_updates=false"
	if dropPending {
		body = "drop_pending_updates=true"
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}

// BuildHTTPClient returns an HTTP client tuned for short outbound Bot API calls.
func BuildHTTPClient() *http.Client {
	retry := &retryTransport{
		base:       baseTransport(defaultResponseTimeout),
		maxRetries: defaultRetryAttempts,
		backoff:    defaultRetryBackoff,
	}

	return &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: retry,
	}
}

// buildPollClient returns a client suitable for long polls: no overall
// timeout and a response-header window large enough for the server-side wait.
// Per-call bounds come from request contexts.
func buildPollClient() *http.Client {
	return &http.Client{
		Transport: baseTransport(0),
	}
}

func baseTransport(responseTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
