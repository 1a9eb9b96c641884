package engine

import (
	"context"
	"fmt"

	"github.com/scheerer/nightwolf-rgb/internal/effects"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Control translates loosely typed requests into engine transitions.
type Control struct {
	engine *Engine
}

func NewControl(engine *Engine) *Control {
	return &Control{engine: engine}
}

// Start fails only for a missing or unknown kind and invalid options.
func (c *Control) Start(ctx context.Context, kind string, options *effects.Options) (Response, error) {
	k, err := effects.ParseKind(kind)
	if err != nil {
		return Response{}, err
	}

	var opts effects.Options
	if options != nil {
		opts = *options
	}
	if err := c.engine.Start(ctx, k, opts); err != nil {
		return Response{}, err
	}
	return Response{Success: true, Message: fmt.Sprintf("Effect %s started", k)}, nil
}

func (c *Control) Stop() Response {
	c.engine.Stop()
	return Response{Success: true, Message: "Effect stopped"}
}

func (c *Control) Status() Status {
	return c.engine.Status()
}

func (c *Control) Metrics() MetricsSnapshot {
	return c.engine.Metrics()
}
