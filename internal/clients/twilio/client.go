package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/voxlane/voxlane-backend/internal/pkg/ctxutil"
	"github.com/voxlane/voxlane-backend/internal/pkg/envutil"
	"github.com/voxlane/voxlane-backend/internal/pkg/httpx"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

// Client covers the phone-number provisioning surface used by the backend.
type Client interface {
	SearchAvailable(ctx context.Context, req SearchRequest) ([]AvailableNumber, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*IncomingNumber, error)
	UpdateVoiceURL(ctx context.Context, numberSID string, voiceURL string) (*IncomingNumber, error)
	Release(ctx context.Context, numberSID string) error
}

type Config struct {
	AccountSID      string
	AuthToken       string
	APIKey          string
	APIKeySecret    string
	BaseURL         string
	DefaultVoiceURL string
	Timeout         time.Duration
	MaxRetries      int
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("TWILIO_TIMEOUT_SECONDS", 30)
	maxRetries := envutil.Int("TWILIO_MAX_RETRIES", 4)

	return Config{
		AccountSID:      strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		AuthToken:       strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		APIKey:          strings.TrimSpace(os.Getenv("TWILIO_API_KEY")),
		APIKeySecret:    strings.TrimSpace(os.Getenv("TWILIO_API_KEY_SECRET")),
		BaseURL:         strings.TrimSpace(os.Getenv("TWILIO_BASE_URL")),
		DefaultVoiceURL: strings.TrimSpace(os.Getenv("TWILIO_VOICE_URL")),
		Timeout:         time.Duration(timeoutSec) * time.Second,
		MaxRetries:      maxRetries,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("missing TWILIO_ACCOUNT_SID")
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIKeySecret = strings.TrimSpace(cfg.APIKeySecret)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	if cfg.APIKey != "" {
		if cfg.APIKeySecret == "" {
			return nil, fmt.Errorf("missing TWILIO_API_KEY_SECRET (required when TWILIO_API_KEY is set)")
		}
	} else {
		if cfg.AuthToken == "" {
			return nil, fmt.Errorf("missing TWILIO_AUTH_TOKEN (or provide TWILIO_API_KEY + TWILIO_API_KEY_SECRET)")
		}
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}

	return &client{
		log:        log.With("client", "TwilioClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

type SearchRequest struct {
	Country  string
	AreaCode string
	Contains string
	Limit    int
}

type AvailableNumber struct {
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
	Locality     string `json:"locality,omitempty"`
	Region       string `json:"region,omitempty"`
	ISOCountry   string `json:"iso_country,omitempty"`
}

type PurchaseRequest struct {
	PhoneNumber  string
	FriendlyName string
	VoiceURL     string
}

type IncomingNumber struct {
	SID          string `json:"sid,omitempty"`
	AccountSID   string `json:"account_sid,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
	VoiceURL     string `json:"voice_url,omitempty"`
	Status       string `json:"status,omitempty"`
	DateCreated  string `json:"date_created,omitempty"`
	URI          string `json:"uri,omitempty"`
}

func (c *client) SearchAvailable(ctx context.Context, req SearchRequest) ([]AvailableNumber, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("twilio client unavailable")
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		country = "US"
	}

	q := url.Values{}
	if s := strings.TrimSpace(req.AreaCode); s != "" {
		q.Set("AreaCode", s)
	}
	if s := strings.TrimSpace(req.Contains); s != "" {
		q.Set("Contains", s)
	}
	if req.Limit > 0 {
		q.Set("PageSize", fmt.Sprintf("%d", req.Limit))
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/AvailablePhoneNumbers/%s/Local.json", c.cfg.BaseURL, c.cfg.AccountSID, country)
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	type searchResponse struct {
		AvailablePhoneNumbers []AvailableNumber `json:"available_phone_numbers"`
	}
	out, err := doJSON[searchResponse](c, ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	return out.AvailablePhoneNumbers, nil
}

func (c *client) Purchase(ctx context.Context, req PurchaseRequest) (*IncomingNumber, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("twilio client unavailable")
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		return nil, fmt.Errorf("twilio: PhoneNumber required")
	}
	if strings.TrimSpace(req.VoiceURL) == "" {
		req.VoiceURL = c.cfg.DefaultVoiceURL
	}

	form := url.Values{}
	form.Set("PhoneNumber", req.PhoneNumber)
	if s := strings.TrimSpace(req.FriendlyName); s != "" {
		form.Set("FriendlyName", s)
	}
	if s := strings.TrimSpace(req.VoiceURL); s != "" {
		form.Set("VoiceUrl", s)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers.json", c.cfg.BaseURL, c.cfg.AccountSID)
	return doForm[IncomingNumber](c, ctx, "POST", endpoint, form)
}

func (c *client) UpdateVoiceURL(ctx context.Context, numberSID string, voiceURL string) (*IncomingNumber, error) {
	numberSID = strings.TrimSpace(numberSID)
	if numberSID == "" {
		return nil, fmt.Errorf("twilio: number SID required")
	}

	form := url.Values{}
	form.Set("VoiceUrl", strings.TrimSpace(voiceURL))

	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers/%s.json", c.cfg.BaseURL, c.cfg.AccountSID, numberSID)
	return doForm[IncomingNumber](c, ctx, "POST", endpoint, form)
}

func (c *client) Release(ctx context.Context, numberSID string) error {
	numberSID = strings.TrimSpace(numberSID)
	if numberSID == "" {
		return fmt.Errorf("twilio: number SID required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers/%s.json", c.cfg.BaseURL, c.cfg.AccountSID, numberSID)
	_, err := doJSON[struct{}](c, ctx, "DELETE", endpoint, nil)
	return err
}

// ---------- HTTP / retry helpers ----------

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "twilio: <nil error>"
	}
	if e.APIError != nil && strings.TrimSpace(e.APIError.Message) != "" {
		if e.APIError.Code != 0 {
			return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
		}
		return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.APIError.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) basicAuth() (user, pass string) {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey, c.cfg.APIKeySecret
	}
	return c.cfg.AccountSID, c.cfg.AuthToken
}

func doForm[T any](c *client, ctx context.Context, method, urlStr string, form url.Values) (*T, error) {
	return retryDo[T](c, ctx, urlStr, func() (*T, *http.Response, error) {
		req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, urlStr, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return execute[T](c, req)
	})
}

func doJSON[T any](c *client, ctx context.Context, method, urlStr string, body io.Reader) (*T, error) {
	return retryDo[T](c, ctx, urlStr, func() (*T, *http.Response, error) {
		req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, urlStr, body)
		if err != nil {
			return nil, nil, err
		}
		return execute[T](c, req)
	})
}

func retryDo[T any](c *client, ctx context.Context, urlStr string, once func() (*T, *http.Response, error)) (*T, error) {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := once()
		if err == nil {
			return out, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Twilio request retrying",
			"url", urlStr,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

func execute[T any](c *client, req *http.Request) (*T, *http.Response, error) {
	user, pass := c.basicAuth()
	req.SetBasicAuth(user, pass)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			httpErr.APIError = &ae
		}
		return nil, resp, httpErr
	}

	var out T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, resp, fmt.Errorf("twilio decode error: %w", err)
		}
	}
	return &out, resp, nil
}
