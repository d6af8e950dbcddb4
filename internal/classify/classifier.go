// Package classify produces a FileMetadata record for a newly stored file.
//
// Classification first tries an optional external capability (an LLM behind
// an OpenAI-compatible API). The call is bounded by a timeout, a token-bucket
// rate limiter and a circuit breaker. Any failure (no capability, timeout,
// rate limit, open circuit, malformed answer) falls back to the extension
// heuristic. Callers never see a classification error.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dharsanguruparan/FileShelf/internal/model"
)

// Descriptor is what the classifier knows about a file without its bytes.
type Descriptor struct {
	Name string
	Kind model.FileKind
	Size int64
}

// Content is an optional view of the file body: a text excerpt, or just the
// fact that binary content exists.
type Content struct {
	Text   string
	Binary bool
}

// Result is the raw answer of an external capability.
type Result struct {
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// Capability is an external classification service.
type Capability interface {
	Classify(ctx context.Context, desc Descriptor, content *Content) (Result, error)
}

// ErrRateLimited is returned internally when the limiter rejects a call.
var ErrRateLimited = errors.New("classification rate limited")

// Options tune how the capability is called.
type Options struct {
	// Timeout bounds a single capability call. Zero means 15s.
	Timeout time.Duration
	// RatePerSec and Burst configure the limiter. RatePerSec <= 0 disables it.
	RatePerSec float64
	Burst      int
	// Now is the clock, for tests.
	Now func() time.Time
}

// Classifier turns descriptors into metadata records.
type Classifier struct {
	capability Capability
	timeout    time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[Result]
	now        func() time.Time
	logger     zerolog.Logger
}

// New returns a Classifier. A nil capability means heuristic-only.
func New(capability Capability, opts Options, logger zerolog.Logger) *Classifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger = logger.With().Str("component", "classify").Logger()
	c := &Classifier{
		capability: capability,
		timeout:    opts.Timeout,
		now:        opts.Now,
		logger:     logger,
	}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	c.breaker = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller giving up says nothing about the capability's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("classifier circuit state change")
		},
	})
	return c
}

// AIEnabled reports whether an external capability is configured.
func (c *Classifier) AIEnabled() bool {
	return c.capability != nil
}

// Classify returns a fresh metadata record for the file. It never fails.
func (c *Classifier) Classify(ctx context.Context, desc Descriptor, content *Content) model.FileMetadata {
	now := c.now()
	if c.capability == nil {
		classificationsTotal.WithLabelValues("heuristic").Inc()
		return Heuristic(desc, now)
	}
	res, err := c.callCapability(ctx, desc, content)
	if err != nil {
		fallbacksTotal.WithLabelValues(fallbackReason(err)).Inc()
		classificationsTotal.WithLabelValues("heuristic").Inc()
		c.logger.Warn().Err(err).Str("name", desc.Name).Msg("ai classification failed, using heuristic")
		return Heuristic(desc, now)
	}
	classificationsTotal.WithLabelValues("ai").Inc()
	return fromResult(desc, res, now)
}

func (c *Classifier) callCapability(ctx context.Context, desc Descriptor, content *Content) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return Result{}, ErrRateLimited
	}
	return c.breaker.Execute(func() (Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.capability.Classify(callCtx, desc, content)
		if err != nil {
			return Result{}, err
		}
		if callCtx.Err() != nil {
			return Result{}, callCtx.Err()
		}
		return res, nil
	})
}

// fromResult converts a capability answer into a record. Unknown categories
// are kept verbatim; browsing folds them into Other.
func fromResult(desc Descriptor, res Result, now time.Time) model.FileMetadata {
	category := strings.TrimSpace(res.Category)
	if category == "" {
		category = string(model.CategoryOther)
	}
	tags := make([]string, 0, model.MaxTags)
	for _, tag := range res.Tags {
		if len(tags) == model.MaxTags {
			break
		}
		tags = append(tags, tag)
	}
	return model.FileMetadata{
		Category:       model.Category(category),
		Tags:           tags,
		Description:    strings.TrimSpace(res.Description),
		Extension:      Extension(desc.Name),
		ClassifiedByAI: true,
		CreatedAt:      now.UTC(),
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}

// Describe renders a one-line summary, used by the CLI.
func Describe(m model.FileMetadata) string {
	src := "heuristic"
	if m.ClassifiedByAI {
		src = "ai"
	}
	return fmt.Sprintf("%s [%s] ext=%q (%s)", m.Category, strings.Join(m.Tags, ","), m.Extension, src)
}
