package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/infra"
)

const (
	moderationServiceName    = "external-moderation"
	defaultModerationURL     = "https://api.openai.com/v1"
	defaultModerationModel   = "omni-moderation-latest"
	defaultModerationTimeout = 5 * time.Second
)

// UnspecifiedCategory names a flagged result that reported no category.
const UnspecifiedCategory = "external moderation"

// Classification is the external classifier's verdict for one prompt.
type Classification struct {
	Flagged    bool
	Categories []string
}

// ClientOptions configures the external moderation client.
type ClientOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds every classification call, independent of the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
	// FailClosed returns transport and service errors wrapped in
	// domain.ErrModerationUnavailable. The zero value fails open and treats
	// them as "not flagged".
	FailClosed bool
	OnFallback func(reason string, err error)
}

// Client calls an OpenAI-compatible moderation endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger
	failOpen   bool
	onFallback func(reason string, err error)
}

type moderationRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// NewClient constructs the moderation client with defaults applied.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultModerationURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModerationModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultModerationTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
		failOpen:   !opts.FailClosed,
		onFallback: opts.OnFallback,
	}
}

// Classify asks the external service whether prompt violates policy. Failures
// follow the configured fail-open policy and are always logged.
func (c *Client) Classify(ctx context.Context, prompt string) (Classification, error) {
	res, reason, err := c.classify(ctx, prompt)
	if err == nil {
		return res, nil
	}
	c.logger.Error().
		Str("service", moderationServiceName).
		Str("reason", reason).
		Bool("fail_open", c.failOpen).
		Err(err).
		Msg("moderation: classification failed")
	if c.onFallback != nil {
		c.onFallback(reason, err)
	}
	if c.failOpen {
		return Classification{}, nil
	}
	return Classification{}, fmt.Errorf("%w: %v", domain.ErrModerationUnavailable, err)
}

func (c *Client) classify(ctx context.Context, prompt string) (Classification, string, error) {
	if c.apiKey == "" {
		return Classification{}, "missing_api_key", errors.New("moderation: api key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(moderationRequest{Model: c.model, Input: prompt})
	if err != nil {
		return Classification{}, "encode_request", fmt.Errorf("moderation: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return Classification{}, "build_request", fmt.Errorf("moderation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Classification{}, "timeout", fmt.Errorf("moderation: http request: %w", err)
		}
		return Classification{}, "http_request", fmt.Errorf("moderation: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Classification{}, fmt.Sprintf("http_%d", resp.StatusCode),
			fmt.Errorf("moderation: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Classification{}, "decode_response", fmt.Errorf("moderation: decode response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return Classification{}, "empty_results", errors.New("moderation: no results")
	}
	out := Classification{}
	for _, result := range decoded.Results {
		if !result.Flagged {
			continue
		}
		out.Flagged = true
		for name, hit := range result.Categories {
			if hit {
				out.Categories = appendUnique(out.Categories, name)
			}
		}
	}
	sort.Strings(out.Categories)
	if out.Flagged && len(out.Categories) == 0 {
		out.Categories = []string{UnspecifiedCategory}
	}
	return out, "", nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
