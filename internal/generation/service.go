package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/infra"
	"github.com/gupranay/civitai/internal/moderation"
	"github.com/gupranay/civitai/internal/orchestrator"
)

const (
	// TagGeneration is attached to every submitted workflow.
	TagGeneration = "generation"
	// SignalTextToImageUpdate is the signal channel workflow callbacks publish to.
	SignalTextToImageUpdate = "textToImageUpdate"
)

type Auditor interface {
	Audit(prompt string) moderation.AuditResult
}

type Moderator interface {
	Classify(ctx context.Context, prompt string) (moderation.Classification, error)
}

type Submitter interface {
	SubmitWorkflow(ctx context.Context, token string, sub orchestrator.Submission, dryRun bool) (*orchestrator.Workflow, error)
}

type Options struct {
	Auditor    Auditor
	Moderator  Moderator
	Counter    moderation.Counter
	Escalation *moderation.Escalation
	Normalizer *Normalizer
	Submitter  Submitter

	SignalsEndpoint string
	Limits          domain.Limits
	ETAHorizon      time.Duration
	Now             func() time.Time
	Logger          *infra.Logger
}

// Service runs generation requests through screening, normalization and
// submission. Stages run strictly in that order; nothing reaches the
// orchestrator unless both screening stages pass.
type Service struct {
	auditor    Auditor
	moderator  Moderator
	counter    moderation.Counter
	escalation *moderation.Escalation
	normalizer *Normalizer
	submitter  Submitter

	signalsEndpoint string
	limits          domain.Limits
	etaHorizon      time.Duration
	now             func() time.Time
	logger          *infra.Logger
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Auditor == nil:
		return nil, errors.New("generation: auditor is required")
	case opts.Counter == nil:
		return nil, errors.New("generation: abuse counter is required")
	case opts.Submitter == nil:
		return nil, errors.New("generation: submitter is required")
	}
	s := &Service{
		auditor:         opts.Auditor,
		moderator:       opts.Moderator,
		counter:         opts.Counter,
		escalation:      opts.Escalation,
		normalizer:      opts.Normalizer,
		submitter:       opts.Submitter,
		signalsEndpoint: strings.TrimRight(opts.SignalsEndpoint, "/"),
		limits:          opts.Limits,
		etaHorizon:      opts.ETAHorizon,
		now:             opts.Now,
		logger:          opts.Logger,
	}
	if s.escalation == nil {
		s.escalation = moderation.NewEscalation(moderation.DefaultThresholds())
	}
	if s.normalizer == nil {
		s.normalizer = NewNormalizer(nil, DefaultMaxRandomSeed)
	}
	if s.limits == (domain.Limits{}) {
		s.limits = domain.DefaultLimits()
	}
	if s.etaHorizon <= 0 {
		s.etaHorizon = orchestrator.DefaultETAHorizon
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		s.logger = &l
	}
	return s, nil
}

// Generate screens req, resolves its seed and submits it as a workflow owned
// by userID. A blocked prompt is recorded against the user exactly once and
// returned as a *domain.PolicyViolationError.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest, userID, token string) (orchestrator.FormattedWorkflow, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return orchestrator.FormattedWorkflow{}, domain.ErrUnauthorized
	}
	if err := req.Validate(s.limits); err != nil {
		return orchestrator.FormattedWorkflow{}, err
	}

	if req.HasPrompt() {
		outcome, err := s.screen(ctx, req.Prompt())
		if err != nil {
			return orchestrator.FormattedWorkflow{}, err
		}
		if outcome.Blocked {
			return orchestrator.FormattedWorkflow{}, s.reject(ctx, userID, outcome)
		}
	}

	normalized := s.normalizer.Normalize(req)
	step, err := orchestrator.NewStep(normalized)
	if err != nil {
		return orchestrator.FormattedWorkflow{}, err
	}
	sub := orchestrator.Submission{
		Tags:  mergeTags(TagGeneration, normalized.Tags),
		Steps: []orchestrator.Step{step},
		Tips: &orchestrator.Tips{
			Civitai:  normalized.CivitaiTip,
			Creators: normalized.CreatorTip,
		},
		Callbacks: []orchestrator.Callback{{
			URL:        s.callbackURL(userID),
			EventTypes: []string{orchestrator.EventJobAll, orchestrator.EventWorkflowAll},
		}},
	}
	wf, err := s.submitter.SubmitWorkflow(ctx, token, sub, false)
	if err != nil {
		return orchestrator.FormattedWorkflow{}, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("workflow_id", wf.ID).
		Str("step_type", step.Type).
		Msg("generation submitted")
	return orchestrator.Format(wf), nil
}

// WhatIf asks the orchestrator to price and schedule req without enqueueing
// it. It has no abuse side effects and leaves the seed unresolved.
func (s *Service) WhatIf(ctx context.Context, req domain.GenerationRequest, token string) (orchestrator.QueueEstimate, error) {
	if err := req.Validate(s.limits); err != nil {
		return orchestrator.QueueEstimate{}, err
	}
	step, err := orchestrator.NewStep(req)
	if err != nil {
		return orchestrator.QueueEstimate{}, err
	}
	wf, err := s.submitter.SubmitWorkflow(ctx, token, orchestrator.Submission{Steps: []orchestrator.Step{step}}, true)
	if err != nil {
		return orchestrator.QueueEstimate{}, err
	}
	return orchestrator.Estimate(wf, s.now(), s.etaHorizon), nil
}

// screen runs the local audit and then, only if it passed, the external
// classifier. An error is returned only when moderation fails closed.
func (s *Service) screen(ctx context.Context, prompt string) (domain.ModerationOutcome, error) {
	if res := s.auditor.Audit(prompt); res.Blocked {
		return domain.ModerationOutcome{Blocked: true, Reasons: res.Reasons, Source: domain.ModerationSourceRegex}, nil
	}
	if s.moderator == nil {
		return domain.ModerationOutcome{}, nil
	}
	cls, err := s.moderator.Classify(ctx, prompt)
	if err != nil {
		return domain.ModerationOutcome{}, err
	}
	if !cls.Flagged {
		return domain.ModerationOutcome{}, nil
	}
	return domain.ModerationOutcome{Blocked: true, Reasons: cls.Categories, Source: domain.ModerationSourceExternal}, nil
}

func (s *Service) reject(ctx context.Context, userID string, outcome domain.ModerationOutcome) error {
	if err := s.counter.Increment(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("generation: record blocked attempt")
	}
	count, err := s.counter.Count(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("generation: count blocked attempts")
		count = 0
	}
	message := s.escalation.Compose(count, outcome.Reasons)
	s.logger.Warn().
		Str("user_id", userID).
		Str("source", string(outcome.Source)).
		Strs("reasons", outcome.Reasons).
		Int("count", count).
		Msg("generation: prompt blocked")
	return &domain.PolicyViolationError{
		Source:  outcome.Source,
		Reasons: outcome.Reasons,
		Count:   count,
		Message: message,
	}
}

func (s *Service) callbackURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/signals/%s", s.signalsEndpoint, url.PathEscape(userID), SignalTextToImageUpdate)
}

func mergeTags(fixed string, tags []string) []string {
	out := []string{fixed}
	seen := map[string]struct{}{fixed: {}}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
