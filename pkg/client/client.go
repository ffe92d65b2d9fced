package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tzevents/core"
	"tzevents/pkg/timezone"
)

const DefaultBaseURL = "http://localhost:8080"

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(http.StatusText(e.StatusCode))
	}

	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}

	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Retryable reports whether err might go away by asking again later: network
// failures and 5xx answers. 4xx answers are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	return !errors.Is(err, context.Canceled)
}

// Client talks to the tzevents REST API.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTP = httpClient
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}

	client := &Client{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *Client) ListEvents(ctx context.Context) ([]core.Event, error) {
	var events []core.Event
	if err := c.doJSON(ctx, http.MethodGet, "/api/events", nil, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*core.Event, error) {
	var event core.Event
	if err := c.doJSON(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

func (c *Client) GetEventByShareableId(ctx context.Context, shareableId string) (*core.Event, error) {
	var event core.Event
	if err := c.doJSON(ctx, http.MethodGet, core.SharePath+url.PathEscape(shareableId), nil, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

func (c *Client) CreateEvent(ctx context.Context, request core.CreateEventRequest) (*core.Event, error) {
	var event core.Event
	if err := c.doJSON(ctx, http.MethodPost, "/api/events", request, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

func (c *Client) ListTimezones(ctx context.Context) ([]timezone.Zone, error) {
	var zones []timezone.Zone
	if err := c.doJSON(ctx, http.MethodGet, "/api/timezone/list", nil, &zones); err != nil {
		return nil, err
	}

	return zones, nil
}

// Convert asks the API to read dateTime in the from zone and express it in
// the to zone.
func (c *Client) Convert(ctx context.Context, from string, to string, dateTime string) (*core.ConvertResponse, error) {
	query := url.Values{}
	query.Set("fromTimezone", from)
	query.Set("toTimezone", to)
	query.Set("dateTime", dateTime)

	var conversion core.ConvertResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/timezone/convert?"+query.Encode(), nil, &conversion); err != nil {
		return nil, err
	}

	return &conversion, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, req any, resp any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}

	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()

	response, err := c.HTTP.Do(request)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return err
	}
	defer response.Body.Close()

	log.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", response.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api call")

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return decodeError(response)
	}

	if resp == nil {
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeError(response *http.Response) error {
	apiErr := &APIError{StatusCode: response.StatusCode}

	// 404 answers carry no body.
	var body core.Error
	if err := json.NewDecoder(io.LimitReader(response.Body, 1<<20)).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Details = body.Messages()
	}

	return apiErr
}
