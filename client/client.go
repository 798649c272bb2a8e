package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetches retry transport errors and 5xx responses with exponential backoff
// up to this many attempts, then fail terminally to the caller.
const fetchMaxRetries = 4

var (
	// ErrConflict covers reservation conflicts and illegal workflow
	// transitions; recoverable by waiting for a release or refreshing.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is the server refusing a self-review.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

type apiError struct {
	Error string `json:"error"`
}

type Client struct {
	baseURL      string
	sessionToken string
	httpClient   *http.Client
	logger       *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithSessionToken(token string) Option {
	return func(c *Client) { c.sessionToken = token }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionToken is this client's reservation holder identity.
func (c *Client) SessionToken() string {
	return c.sessionToken
}

func (c *Client) absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.baseURL + u
}

func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.absoluteURL(url), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.Header.Set("X-Session-Token", c.sessionToken)
	}
	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
}

// getJSON fetches with bounded exponential retry. 4xx responses are
// permanent; 5xx and transport failures retry until the ceiling.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	op := func() error {
		resp, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(statusError(resp))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), fetchMaxRetries), ctx)

	err := backoff.Retry(op, bo)
	if err != nil {
		c.logger.Error("fetch failed", slog.String("url", url), slog.String("err", err.Error()))
	}
	return err
}

// postJSON does not retry: workflow actions and reservation calls are not
// idempotent and their conflicts are answers, not failures.
func (c *Client) postJSON(ctx context.Context, method, url string, body, out any) error {
	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchAssetPage fetches one page of the asset list. pageURL may be a
// pagination.next value from a previous page or empty for the first page.
func (c *Client) FetchAssetPage(ctx context.Context, pageURL string) (AssetPage, error) {
	if pageURL == "" {
		pageURL = "/api/v1/assets"
	}
	var page AssetPage
	if err := c.getJSON(ctx, pageURL, &page); err != nil {
		return AssetPage{}, err
	}
	return page, nil
}

func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var out struct {
		Objects []Campaign `json:"objects"`
	}
	if err := c.getJSON(ctx, "/api/v1/campaigns", &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

// fetchObject resolves a ref URL and unwraps the response by the fixed
// "object" key.
func (c *Client) fetchObject(ctx context.Context, url string, out any) error {
	wrapper := map[string]json.RawMessage{}
	if err := c.getJSON(ctx, url, &wrapper); err != nil {
		return err
	}
	raw, ok := wrapper["object"]
	if !ok {
		return fmt.Errorf("response from %s has no object key", url)
	}
	return json.Unmarshal(raw, out)
}

// Reserve acquires or renews the exclusive editing claim on an asset.
func (c *Client) Reserve(ctx context.Context, assetID string) (Reservation, error) {
	var out struct {
		Data Reservation `json:"data"`
	}
	url := fmt.Sprintf("/api/v1/assets/%s/reservation", assetID)
	if err := c.postJSON(ctx, http.MethodPost, url, nil, &out); err != nil {
		return Reservation{}, err
	}
	return out.Data, nil
}

// Release gives up the claim. Releasing something not held is a no-op.
func (c *Client) Release(ctx context.Context, assetID string) error {
	url := fmt.Sprintf("/api/v1/assets/%s/reservation", assetID)
	return c.postJSON(ctx, http.MethodDelete, url, nil, nil)
}

type saveRequest struct {
	Text    string `json:"text"`
	Confirm bool   `json:"confirm"`
}

type saveResponse struct {
	Transcription Transcription `json:"transcription"`
	Asset         Asset         `json:"asset"`
}

func (c *Client) Save(ctx context.Context, assetID, text string, confirm bool) (Transcription, Asset, error) {
	var out saveResponse
	url := fmt.Sprintf("/api/v1/assets/%s/transcriptions", assetID)
	err := c.postJSON(ctx, http.MethodPost, url, saveRequest{Text: text, Confirm: confirm}, &out)
	if err != nil {
		return Transcription{}, Asset{}, err
	}
	return out.Transcription, out.Asset, nil
}

func (c *Client) Submit(ctx context.Context, assetID string) (Asset, error) {
	var out struct {
		Asset Asset `json:"asset"`
	}
	url := fmt.Sprintf("/api/v1/assets/%s/transcriptions/submit", assetID)
	if err := c.postJSON(ctx, http.MethodPost, url, nil, &out); err != nil {
		return Asset{}, err
	}
	return out.Asset, nil
}

type reviewRequest struct {
	Action   string `json:"action"`
	Feedback string `json:"feedback,omitempty"`
}

func (c *Client) Review(ctx context.Context, transcriptionID, action, feedback string) (Asset, error) {
	var out struct {
		Asset Asset `json:"asset"`
	}
	url := fmt.Sprintf("/api/v1/transcriptions/%s/review", transcriptionID)
	err := c.postJSON(ctx, http.MethodPost, url, reviewRequest{Action: action, Feedback: feedback}, &out)
	if err != nil {
		return Asset{}, err
	}
	return out.Asset, nil
}
