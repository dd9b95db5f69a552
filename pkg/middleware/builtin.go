package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/metrics"
	"github.com/deagent-io/deagent/pkg/turn"
)

// LoggingMiddleware creates middleware that logs every resolved turn.
// It logs before and after processing with structured fields.
func LoggingMiddleware() Middleware {
	return NewMiddlewareFunc("logging", func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		start := time.Now()

		log.WithFields(map[string]interface{}{
			"session_id":  ctx.SessionID,
			"topic":       ctx.Topic,
			"turn_number": ctx.TurnNumber,
			"steps":       len(res.Steps),
			"content_len": len(res.Content),
			"failed":      res.Err != nil,
		}).Debug("processing turn result")

		out, err := next(ctx, res)

		duration := time.Since(start)

		if err != nil {
			log.WithFields(map[string]interface{}{
				"session_id":  ctx.SessionID,
				"turn_number": ctx.TurnNumber,
				"duration_ms": duration.Milliseconds(),
			}).WithError(err).Error("turn result processing failed")
			return nil, err
		}

		log.WithFields(map[string]interface{}{
			"session_id":  ctx.SessionID,
			"turn_number": ctx.TurnNumber,
			"duration_ms": duration.Milliseconds(),
		}).Debug("turn result processed successfully")

		return out, nil
	})
}

// MetricsMiddleware creates middleware that records turn outcomes in the
// metrics registry. A nil registry disables recording.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return NewMiddlewareFunc("metrics", func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		start := time.Now()

		out, err := next(ctx, res)

		if m != nil {
			outcome := res
			if out != nil {
				outcome = out
			}
			m.RecordTurn(ctx.Topic, outcome.Metadata.Intent, outcome.Err == nil && err == nil, time.Since(start))
			if outcome.Err == nil {
				m.RecordSteps(outcome.Steps)
			}
		}

		if ctx.Metadata == nil {
			ctx.Metadata = make(map[string]interface{})
		}
		ctx.Metadata["processing_duration_ms"] = time.Since(start).Milliseconds()

		return out, err
	})
}

// SanitizationMiddleware creates middleware that normalizes the answer text.
// It trims surrounding whitespace and collapses runs of blank lines, keeping
// intentional paragraph breaks.
func SanitizationMiddleware() Middleware {
	return NewTransformMiddleware("sanitization", func(ctx *TurnContext, res *turn.Result) (*turn.Result, error) {
		if res.Err != nil {
			return res, nil
		}

		res.Content = strings.TrimSpace(res.Content)

		var out []string
		blank := 0
		for _, line := range strings.Split(res.Content, "\n") {
			if strings.TrimSpace(line) == "" {
				blank++
				if blank > 1 {
					continue
				}
				out = append(out, "")
				continue
			}
			blank = 0
			out = append(out, strings.TrimRight(line, " \t"))
		}
		res.Content = strings.Join(out, "\n")

		return res, nil
	})
}

// EmptyContentValidationMiddleware creates middleware that rejects successful
// results with no displayable content. Failed results pass through so the
// error text can still be shown.
func EmptyContentValidationMiddleware() Middleware {
	return NewValidationMiddleware("empty-content", func(ctx *TurnContext, res *turn.Result) error {
		if res.Err != nil {
			return nil
		}
		if strings.TrimSpace(res.Content) == "" {
			return fmt.Errorf("backend returned an empty response")
		}
		return nil
	})
}

// StepOrderValidationMiddleware creates middleware that rejects results whose
// step list contains unknown statuses. Unknown agents or actions are fine;
// an unrecognized status would break the activity rendering.
func StepOrderValidationMiddleware() Middleware {
	return NewValidationMiddleware("step-status", func(ctx *TurnContext, res *turn.Result) error {
		for i, s := range res.Steps {
			if !s.Status.Valid() {
				return fmt.Errorf("step %d has unknown status %q", i, s.Status)
			}
		}
		return nil
	})
}

// RecoveryMiddleware creates middleware that converts panics from downstream
// middleware into an error result instead of crashing the TUI.
func RecoveryMiddleware() Middleware {
	return NewMiddlewareFunc("recovery", func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (out *turn.Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"session_id":  ctx.SessionID,
					"turn_number": ctx.TurnNumber,
					"panic":       fmt.Sprint(r),
				}).Error("recovered from panic in turn pipeline")
				out = nil
				err = fmt.Errorf("internal error while processing the response: %v", r)
			}
		}()
		return next(ctx, res)
	})
}

// ContextEnrichmentMiddleware creates middleware that enriches the turn
// context metadata before the rest of the chain runs.
func ContextEnrichmentMiddleware(enricher func(*TurnContext, *turn.Result)) Middleware {
	return NewMiddlewareFunc("context-enrichment", func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		if ctx.Metadata == nil {
			ctx.Metadata = make(map[string]interface{})
		}

		enricher(ctx, res)

		return next(ctx, res)
	})
}

// DefaultChain assembles the standard turn pipeline: panic recovery first,
// then logging, metrics, content sanitization, and the validations.
func DefaultChain(m *metrics.Metrics) *Chain {
	return NewChain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		MetricsMiddleware(m),
		SanitizationMiddleware(),
		StepOrderValidationMiddleware(),
		EmptyContentValidationMiddleware(),
	)
}
