package magicalapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
	"github.com/spigell/adherence-scorer/internal/metrics"
	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/utils"
)

const (
	DefaultMaxAttempts      = 20
	DefaultInterval         = 3 * time.Second
	DefaultRateLimitBackoff = 6 * time.Second

	linkedinURL    = "https://linkedin.com/in/"
	linkedinWWWURL = "https://www.linkedin.com/in/"
)

// JobAPI is the create-and-poll contract of the lookup service.
type JobAPI interface {
	CreateJob(ctx context.Context, identifier string) (*Response, error)
	Poll(ctx context.Context, requestID any) (*Response, error)
}

// ProfileResolver turns a candidate slug into a raw profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, slug string) (*profile.Profile, error)
}

// Variant is one way of naming a profile to the lookup service.
type Variant struct {
	Name       string
	Identifier string
}

// Variants lists the identifiers tried for slug, in order.
func Variants(slug string) []Variant {
	escaped := url.PathEscape(slug)
	return []Variant{
		{Name: "slug", Identifier: slug},
		{Name: "url_no_www", Identifier: linkedinURL + escaped},
		{Name: "url_www", Identifier: linkedinWWWURL + escaped},
	}
}

type Resolver struct {
	api    JobAPI
	logger *zap.Logger

	MaxAttempts      int
	Interval         time.Duration
	RateLimitBackoff time.Duration
	// Wait is used for every pause between polls.
	Wait utils.WaitFunc
}

func NewResolver(api JobAPI, logger *zap.Logger) *Resolver {
	return &Resolver{
		api:              api,
		logger:           logger,
		MaxAttempts:      DefaultMaxAttempts,
		Interval:         DefaultInterval,
		RateLimitBackoff: DefaultRateLimitBackoff,
		Wait:             utils.WaitFor,
	}
}

// Resolve tries every identifier variant of slug until one of them yields a
// ready profile. A rejected credential ends the resolution at once with an
// Unauthorized error. When all variants fail a ResolutionFailed error is returned.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*profile.Profile, error) {
	start := time.Now()
	defer func() {
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for _, variant := range Variants(slug) {
		log := r.logger.With(zap.String("slug", slug), zap.String("variant", variant.Name))
		log.Debug("trying variant", zap.String("identifier", variant.Identifier))

		p, err := r.tryVariant(ctx, log, variant)
		if err == nil {
			metrics.Resolutions.WithLabelValues("resolved").Inc()
			log.Info("profile resolved")
			return p, nil
		}

		if domainerrors.IsType(err, domainerrors.ErrTypeUnauthorized) {
			metrics.Resolutions.WithLabelValues("unauthorized").Inc()
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.Resolutions.WithLabelValues("cancelled").Inc()
			return nil, ctxErr
		}

		log.Warn("variant failed", zap.Error(err))
		lastErr = err
	}

	metrics.Resolutions.WithLabelValues("failed").Inc()
	return nil, domainerrors.ResolutionFailed(fmt.Sprintf("no variant of %q could be resolved", slug), lastErr)
}

func (r *Resolver) tryVariant(ctx context.Context, log *zap.Logger, variant Variant) (*profile.Profile, error) {
	created, err := r.api.CreateJob(ctx, variant.Identifier)
	if err != nil {
		return nil, err
	}

	switch created.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized:
		return nil, domainerrors.Unauthorized("lookup API rejected the api key", nil)
	default:
		return nil, domainerrors.Transport(fmt.Sprintf("create job returned status %d", created.StatusCode), nil)
	}

	requestID := created.RequestID()
	if requestID == nil {
		return nil, domainerrors.Internal("create job response has no request id", nil)
	}

	log = log.With(zap.Any("request_id", requestID))

	// lastErr explains why the last attempt did not yield a profile.
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts(); attempt++ {
		resp, err := r.api.Poll(ctx, requestID)
		if err != nil {
			log.Warn("poll failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if err := r.wait(ctx, r.Interval); err != nil {
				return nil, err
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return decode(resp)
		case http.StatusCreated, http.StatusAccepted:
			log.Debug("profile is still processing", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			lastErr = nil
			if err := r.wait(ctx, r.Interval); err != nil {
				return nil, err
			}
		case http.StatusNotFound:
			return nil, domainerrors.NotFound("profile not found", nil)
		case http.StatusUnauthorized:
			log.Error("lookup API rejected the api key", zap.Int("attempt", attempt))
			return nil, domainerrors.Unauthorized("lookup API rejected the api key", nil)
		case http.StatusTooManyRequests:
			log.Warn("rate limited", zap.Int("attempt", attempt), zap.Duration("backoff", r.RateLimitBackoff))
			lastErr = domainerrors.RateLimit("lookup API is rate limiting polls", nil)
			if err := r.wait(ctx, r.RateLimitBackoff); err != nil {
				return nil, err
			}
		default:
			log.Warn("unexpected poll status", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode),
				zap.Any("body", resp.Body))
			return nil, domainerrors.Transport(fmt.Sprintf("poll returned status %d", resp.StatusCode), nil)
		}
	}

	return nil, domainerrors.PollTimeout(fmt.Sprintf("profile not ready after %d attempts", r.maxAttempts()), lastErr)
}

func decode(resp *Response) (*profile.Profile, error) {
	data := resp.Data()
	if data == nil {
		return nil, domainerrors.Internal("ready response has no profile data", nil)
	}

	p, err := profile.Decode(data)
	if err != nil {
		return nil, domainerrors.Internal("ready response has malformed profile data", err)
	}

	return p, nil
}

func (r *Resolver) wait(ctx context.Context, d time.Duration) error {
	if r.Wait == nil {
		return utils.WaitFor(ctx, d)
	}
	return r.Wait(ctx, d)
}

func (r *Resolver) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}
