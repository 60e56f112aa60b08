// Package chatclient talks to the chat server and keeps the local transcript.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidyaguide/internal/domain"
)

var (
	// ErrTransport wraps failures to reach the server at all.
	ErrTransport = errors.New("chatclient: transport failure")
	// ErrMalformedResponse marks 2xx responses the client cannot use.
	ErrMalformedResponse = errors.New("chatclient: malformed response")
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("chatclient: server returned %d %s (%s)", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("chatclient: server returned %d %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("chatclient: server returned %d", e.StatusCode)
	}
}

type Reply struct {
	Text           string
	ConversationID string
}

type sendRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type sendResponse struct {
	Reply          *string `json:"reply"`
	ConversationID string  `json:"conversationId"`
}

type historyResponse struct {
	ConversationID string            `json:"conversationId"`
	Exchanges      []domain.Exchange `json:"exchanges"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client calls the chat server's JSON endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("chatclient: invalid server URL %q", baseURL)
	}
	c := &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send posts message unchanged and returns the server's reply.
func (c *Client) Send(ctx context.Context, message, conversationID string) (Reply, error) {
	body, err := json.Marshal(sendRequest{Message: message, ConversationID: conversationID})
	if err != nil {
		return Reply{}, fmt.Errorf("chatclient: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chatbot", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("chatclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out sendResponse
	if err := c.do(req, &out); err != nil {
		return Reply{}, err
	}
	if out.Reply == nil || *out.Reply == "" {
		return Reply{}, fmt.Errorf("%w: reply field missing or empty", ErrMalformedResponse)
	}
	return Reply{Text: *out.Reply, ConversationID: out.ConversationID}, nil
}

// History fetches the stored exchanges of a conversation, oldest first.
func (c *Client) History(ctx context.Context, conversationID string) ([]domain.Exchange, error) {
	u := c.baseURL + "/history?" + url.Values{"conversationId": {conversationID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("chatclient: create request: %w", err)
	}
	var out historyResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Exchanges, nil
}

// Analyze uploads a resume PDF and returns the server's analysis.
func (c *Client) Analyze(ctx context.Context, filename string, r io.Reader) (domain.ResumeAnalysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("chatclient: create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("chatclient: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("chatclient: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &buf)
	if err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("chatclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out domain.ResumeAnalysis
	if err := c.do(req, &out); err != nil {
		return domain.ResumeAnalysis{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: res.StatusCode}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			statusErr.Code, statusErr.Message = er.Error, er.Message
		}
		return statusErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}
