package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/ai"
	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
	"github.com/spigell/adherence-scorer/internal/logger"
	"github.com/spigell/adherence-scorer/internal/metrics"
	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/scoring"
	"github.com/spigell/adherence-scorer/internal/utils"
)

const (
	DefaultMaxResolveAttempts = 2
	DefaultRetryDelay         = 5 * time.Second
	DefaultCandidateDelay     = 3 * time.Second
	DefaultTopN               = 5
)

type Resolver interface {
	Resolve(ctx context.Context, slug string) (*profile.Profile, error)
}

type Orchestrator struct {
	resolver Resolver
	enricher *profile.Enricher
	logger   *zap.Logger

	MaxResolveAttempts int
	RetryDelay         time.Duration
	CandidateDelay     time.Duration
	TopN               int

	OnUnauthorized UnauthorizedPolicy
	// Confirm is consulted by PolicyAsk. Without it the batch aborts.
	Confirm ConfirmFunc
	// Reviewer optionally annotates the top results.
	Reviewer ai.Reviewer
	Observer Observer
	Wait     utils.WaitFunc
}

func New(resolver Resolver, enricher *profile.Enricher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		resolver:           resolver,
		enricher:           enricher,
		logger:             logger,
		MaxResolveAttempts: DefaultMaxResolveAttempts,
		RetryDelay:         DefaultRetryDelay,
		CandidateDelay:     DefaultCandidateDelay,
		TopN:               DefaultTopN,
		OnUnauthorized:     PolicyAbort,
		Observer:           nopObserver{},
		Wait:               utils.WaitFor,
	}
}

// RunBatch scores every candidate against job, one at a time and in input
// order. The report always holds one result per candidate. A cancelled context
// stops the run: the unprocessed candidates are reported as skipped and the
// context error is returned together with the report.
func (o *Orchestrator) RunBatch(ctx context.Context, candidates []Candidate, job scoring.JobRequirement) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Results: make([]Result, 0, len(candidates)),
	}
	log := o.logger.With(zap.String(logger.FieldRunID, report.RunID))
	log.Info("starting batch", zap.Int("candidates", len(candidates)))

	var runErr error
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		o.observer().OnCandidate(Progress{Index: i + 1, Total: len(candidates), Candidate: candidate})

		result, err := o.process(ctx, log, candidate, job)
		if err != nil && ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		report.Results = append(report.Results, result)
		metrics.CandidatesProcessed.WithLabelValues(string(result.Status)).Inc()
		o.observer().OnResult(i+1, result)

		if domainerrors.IsType(err, domainerrors.ErrTypeUnauthorized) && !o.proceedAfterUnauthorized(ctx, log, candidate) {
			report.Aborted = true
			break
		}

		if i < len(candidates)-1 {
			if err := o.wait(ctx, o.CandidateDelay); err != nil {
				runErr = err
				break
			}
		}
	}

	for _, candidate := range candidates[len(report.Results):] {
		report.Results = append(report.Results, skipped(candidate))
		metrics.CandidatesProcessed.WithLabelValues(string(StatusSkipped)).Inc()
	}

	SortResults(report.Results)
	report.Top = Top(report.Results, o.TopN)

	if runErr == nil {
		o.review(ctx, log, report.Top, job)
	}

	if len(report.Top) > 0 && report.Top[0].Profile != nil {
		log.Debug("best candidate profile", zap.String(logger.FieldSlug, report.Top[0].Slug), zap.Any("profile", report.Top[0].Profile))
	}
	log.Info("batch finished", zap.Int("results", len(report.Results)), zap.Bool("aborted", report.Aborted))

	return report, runErr
}

// process resolves, enriches and scores one candidate. The returned error is
// only meant for flow control, the result is always usable.
func (o *Orchestrator) process(ctx context.Context, log *zap.Logger, candidate Candidate, job scoring.JobRequirement) (Result, error) {
	log = log.With(logger.CandidateFields(candidate.Slug, candidate.Name)...)

	raw, err := o.resolve(ctx, log, candidate)
	if err != nil {
		if domainerrors.IsType(err, domainerrors.ErrTypeUnauthorized) {
			log.Error("credential failure while resolving candidate", zap.Error(err))
			return failed(candidate, CredentialFailureReason), err
		}
		log.Warn("profile could not be resolved", zap.Error(err))
		return failed(candidate, FailureReason), err
	}

	enriched := o.enricher.Enrich(raw)
	scored := scoring.Score(enriched, job)
	metrics.CandidateScores.Observe(scored.Score)

	log.Debug("candidate scored", zap.Float64("score", scored.Score), zap.Strings("reasons", scored.Reasons))

	return Result{
		Name:    candidate.Name,
		Slug:    candidate.Slug,
		Score:   scored.Score,
		Reason:  scored.Reason(),
		Reasons: scored.Reasons,
		Status:  StatusScored,
		Profile: enriched,
	}, nil
}

func (o *Orchestrator) resolve(ctx context.Context, log *zap.Logger, candidate Candidate) (*profile.Profile, error) {
	attempts := o.MaxResolveAttempts
	if attempts <= 0 {
		attempts = DefaultMaxResolveAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := o.resolver.Resolve(ctx, candidate.Slug)
		if err == nil {
			return raw, nil
		}
		if domainerrors.IsType(err, domainerrors.ErrTypeUnauthorized) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		if attempt < attempts {
			log.Info("retrying profile resolution", zap.Int("attempt", attempt), zap.Duration("delay", o.RetryDelay), zap.Error(err))
			if err := o.wait(ctx, o.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

func (o *Orchestrator) proceedAfterUnauthorized(ctx context.Context, log *zap.Logger, candidate Candidate) bool {
	switch o.OnUnauthorized {
	case PolicyContinue:
		log.Warn("continuing batch after credential failure")
		return true
	case PolicyAsk:
		if o.Confirm == nil {
			log.Error("no way to confirm continuation, aborting batch")
			return false
		}
		proceed, err := o.Confirm(ctx, candidate)
		if err != nil {
			log.Error("confirmation failed, aborting batch", zap.Error(err))
			return false
		}
		if !proceed {
			log.Warn("batch aborted after credential failure")
		}
		return proceed
	default:
		log.Error("batch aborted after credential failure")
		return false
	}
}

// review attaches reviewer notes to the shortlisted results. Review failures are
// logged and leave the result untouched.
func (o *Orchestrator) review(ctx context.Context, log *zap.Logger, top []Result, job scoring.JobRequirement) {
	if o.Reviewer == nil {
		return
	}

	for i := range top {
		if top[i].Profile == nil {
			continue
		}

		score := &scoring.Result{Score: top[i].Score, Reasons: top[i].Reasons}
		note, err := o.Reviewer.Review(ctx, top[i].Profile, job, score)
		if err != nil {
			log.Warn("reviewer failed", append(logger.CandidateFields(top[i].Slug, top[i].Name), zap.Error(err))...)
			continue
		}
		top[i].Note = note
	}
}

func (o *Orchestrator) observer() Observer {
	if o.Observer == nil {
		return nopObserver{}
	}
	return o.Observer
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	if o.Wait == nil {
		return utils.WaitFor(ctx, d)
	}
	return o.Wait(ctx, d)
}
