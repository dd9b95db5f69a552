// Package middleware provides a flexible middleware pattern for resolved
// turns. Middleware can inspect, transform, validate, and augment a turn
// result after the backend answers and before it is written to history.
package middleware

import (
	"context"
	"fmt"

	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/turn"
)

// TurnContext contains contextual information for middleware processing.
type TurnContext struct {
	// Ctx is the request context
	Ctx context.Context

	// SessionID identifies the conversation session
	SessionID string

	// Topic is the active focus topic
	Topic string

	// TurnNumber is the ordinal of the turn within the session
	TurnNumber int

	// Metadata contains additional context information
	Metadata map[string]interface{}
}

// Middleware processes turn results in a chain.
// It can modify the result, add metadata, or stop processing by returning
// an error.
type Middleware interface {
	// Process handles a result and optionally passes it to the next middleware.
	Process(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error)

	// Name returns the middleware name for logging and debugging.
	Name() string
}

// ProcessFunc is a function that processes a turn result.
// It's used to chain middleware together.
type ProcessFunc func(ctx *TurnContext, res *turn.Result) (*turn.Result, error)

// Chain represents a chain of middleware.
type Chain struct {
	middleware []Middleware
}

// NewChain creates a new middleware chain.
func NewChain(middleware ...Middleware) *Chain {
	return &Chain{
		middleware: middleware,
	}
}

// Add appends middleware to the chain.
func (c *Chain) Add(m Middleware) {
	c.middleware = append(c.middleware, m)
}

// Process executes the middleware chain for a turn result.
func (c *Chain) Process(ctx *TurnContext, res *turn.Result) (*turn.Result, error) {
	if len(c.middleware) == 0 {
		return res, nil
	}

	// Build the chain from the end
	var process ProcessFunc
	process = func(ctx *TurnContext, res *turn.Result) (*turn.Result, error) {
		return res, nil
	}

	// Wrap each middleware in reverse order
	for i := len(c.middleware) - 1; i >= 0; i-- {
		m := c.middleware[i]
		next := process
		process = func(ctx *TurnContext, res *turn.Result) (*turn.Result, error) {
			return m.Process(ctx, res, next)
		}
	}

	return process(ctx, res)
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	return len(c.middleware)
}

// MiddlewareFunc is a function adapter for the Middleware interface.
type MiddlewareFunc struct {
	name string
	fn   func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error)
}

// NewMiddlewareFunc creates a middleware from a function.
func NewMiddlewareFunc(name string, fn func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error)) Middleware {
	return &MiddlewareFunc{
		name: name,
		fn:   fn,
	}
}

// Process implements Middleware.
func (m *MiddlewareFunc) Process(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
	return m.fn(ctx, res, next)
}

// Name implements Middleware.
func (m *MiddlewareFunc) Name() string {
	return m.name
}

// FilterFunc is a simple filter function that can reject results.
// Return true to allow the result, false to reject it.
type FilterFunc func(ctx *TurnContext, res *turn.Result) (bool, error)

// NewFilterMiddleware creates middleware from a filter function.
// If the filter returns false, processing stops with an error.
func NewFilterMiddleware(name string, filter FilterFunc) Middleware {
	return NewMiddlewareFunc(name, func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		allowed, err := filter(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		if !allowed {
			log.WithFields(map[string]interface{}{
				"middleware":  name,
				"session_id":  ctx.SessionID,
				"turn_number": ctx.TurnNumber,
			}).Warn("turn result filtered by middleware")
			return nil, fmt.Errorf("result rejected by %s filter", name)
		}
		return next(ctx, res)
	})
}

// TransformFunc transforms a turn result.
type TransformFunc func(ctx *TurnContext, res *turn.Result) (*turn.Result, error)

// NewTransformMiddleware creates middleware from a transform function.
func NewTransformMiddleware(name string, transform TransformFunc) Middleware {
	return NewMiddlewareFunc(name, func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		transformed, err := transform(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("transform error: %w", err)
		}
		return next(ctx, transformed)
	})
}

// ValidationFunc validates a turn result.
// Return an error if the result is invalid.
type ValidationFunc func(ctx *TurnContext, res *turn.Result) error

// NewValidationMiddleware creates middleware from a validation function.
func NewValidationMiddleware(name string, validate ValidationFunc) Middleware {
	return NewMiddlewareFunc(name, func(ctx *TurnContext, res *turn.Result, next ProcessFunc) (*turn.Result, error) {
		if err := validate(ctx, res); err != nil {
			log.WithFields(map[string]interface{}{
				"middleware":  name,
				"session_id":  ctx.SessionID,
				"turn_number": ctx.TurnNumber,
			}).WithError(err).Error("turn result validation failed")
			return nil, fmt.Errorf("validation failed in %s: %w", name, err)
		}
		return next(ctx, res)
	})
}
