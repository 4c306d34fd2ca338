package orchestrator

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

	"github.com/rs/zerolog"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/infra"
)

const (
	defaultBaseURL  = "https://orchestration.civitai.com"
	defaultTimeout  = 30 * time.Second
	workflowsPath   = "/v2/consumer/workflows"
	maxErrorPayload = 4096
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client submits workflows to the orchestration service. It performs exactly
// one request per call and never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *infra.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{httpClient: client, baseURL: base, logger: logger}
}

type problemResponse struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (p problemResponse) text() string {
	for _, s := range []string{p.Detail, p.Message, p.Title} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// SubmitWorkflow posts sub on behalf of the holder of token. With dryRun set the
// service only estimates cost and queue position. Every failure is returned as
// a *domain.SubmissionError, except a missing token.
func (c *Client) SubmitWorkflow(ctx context.Context, token string, sub Submission, dryRun bool) (*Workflow, error) {
	if c == nil {
		return nil, &domain.SubmissionError{Message: "orchestrator client not configured"}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("orchestrator: token is required: %w", domain.ErrUnauthorized)
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("encode submission: %w", err)}
	}
	endpoint := c.baseURL + workflowsPath
	if dryRun {
		endpoint += "?whatif=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Bool("what_if", dryRun).Msg("orchestrator: submit failed")
		return nil, &domain.SubmissionError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		var problem problemResponse
		msg := ""
		if json.Unmarshal(raw, &problem) == nil {
			msg = problem.text()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		c.logger.Error().
			Int("status", resp.StatusCode).
			Bool("what_if", dryRun).
			Str("detail", msg).
			Msg("orchestrator: submit rejected")
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Message: msg}
	}

	var wf Workflow
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.logger.Debug().
		Str("workflow_id", wf.ID).
		Bool("what_if", dryRun).
		Dur("took", time.Since(start)).
		Msg("orchestrator: workflow submitted")
	return &wf, nil
}
