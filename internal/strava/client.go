package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"strava-motherduck-sync/internal/config"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	requestTimeout = 10 * time.Second
)

// HTTPError is returned for any non-success response from the Strava API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("strava API returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a Strava API client
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	refreshToken string
	baseURL      string
	tokenURL     string
	logger       *slog.Logger
}

// NewClient creates a new Strava API client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		clientID:     cfg.StravaClientID,
		clientSecret: cfg.StravaClientSecret,
		refreshToken: cfg.StravaRefreshToken,
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		logger:       logger,
	}
}

// SetBaseURL overrides the API base URL (used in tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// SetTokenURL overrides the token endpoint URL (used in tests)
func (c *Client) SetTokenURL(u string) {
	c.tokenURL = u
}

// TokenResponse represents the response from a token refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExchangeRefreshToken exchanges the configured refresh token for a
// short-lived access token. Any non-200 response aborts the run; the
// response body is logged first.
func (c *Client) ExchangeRefreshToken(ctx context.Context) (string, error) {
	c.logger.Info("Fetching new access token from Strava")

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("token refresh failed", "error", err, "duration_ms", duration.Milliseconds())
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Info("token_refresh", "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("error fetching access token", "status", resp.StatusCode, "body", string(bodyBytes))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return tokenResp.AccessToken, nil
}

// get performs a single authorized GET against the API. There is no retry:
// the first failed request aborts the run.
func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("request failed", "path", path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logRateLimitHeaders(resp.Header)

	c.logger.Info("strava_api_request", "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return bodyBytes, nil
}

// logRateLimitHeaders reports Strava rate limit usage at debug level
func (c *Client) logRateLimitHeaders(headers http.Header) {
	limitHeader := headers.Get("X-RateLimit-Limit")
	usageHeader := headers.Get("X-RateLimit-Usage")
	if limitHeader == "" || usageHeader == "" {
		return
	}

	limits := strings.Split(limitHeader, ",")
	usages := strings.Split(usageHeader, ",")
	if len(limits) != 2 || len(usages) != 2 {
		return
	}

	limit15, _ := strconv.Atoi(strings.TrimSpace(limits[0]))
	limitDaily, _ := strconv.Atoi(strings.TrimSpace(limits[1]))
	usage15, _ := strconv.Atoi(strings.TrimSpace(usages[0]))
	usageDaily, _ := strconv.Atoi(strings.TrimSpace(usages[1]))

	c.logger.Debug("rate_limit",
		"limit_15min", limit15,
		"usage_15min", usage15,
		"limit_daily", limitDaily,
		"usage_daily", usageDaily,
	)
}
