package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/observability"
)

// Route pairs a predicate with the handler that runs when it matches.
type Route struct {
	Name   string
	Match  func(u bot.Update) bool
	Handle func(ctx context.Context, u bot.Update) error
}

// Dispatcher runs every matching route for an update, in registration order.
// A failing route is logged and does not stop the ones after it.
type Dispatcher struct {
	routes []Route
}

// NewDispatcher builds a dispatcher over routes.
func NewDispatcher(routes ...Route) *Dispatcher {
	return &Dispatcher{routes: routes}
}

// Names lists route names in evaluation order.
func (d *Dispatcher) Names() []string {
	out := make([]string, len(d.routes))
	for i, r := range d.routes {
		out[i] = r.Name
	}
	return out
}

// Dispatch handles one update. It is safe to call from many goroutines.
func (d *Dispatcher) Dispatch(ctx context.Context, u bot.Update) {
	kind := "message"
	if u.Callback != nil {
		kind = "callback"
	}
	updatesTotal.WithLabelValues(kind).Inc()

	for _, r := range d.routes {
		if r.Match(u) {
			d.run(ctx, r, u)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, r Route, u bot.Update) {
	ctx, span := otel.Tracer("services/dispatcher").Start(ctx, r.Name,
		trace.WithAttributes(
			attribute.Int("update.id", u.ID),
			attribute.Int64("chat.id", updateChatID(u)),
		))
	defer span.End()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if p := recover(); p != nil {
			outcome = "panic"
			err := fmt.Errorf("panic: %v", p)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			observability.Logger(ctx).Error().Err(err).Str("route", r.Name).Int("update_id", u.ID).Msg("route panicked")
		}
		routeRuns.WithLabelValues(r.Name, outcome).Observe(time.Since(start).Seconds())
	}()

	if err := r.Handle(ctx, u); err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Logger(ctx).Error().Err(err).
			Str("route", r.Name).
			Int("update_id", u.ID).
			Int64("chat_id", updateChatID(u)).
			Msg("route failed")
	}
}

func updateChatID(u bot.Update) int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.Callback != nil && u.Callback.Message != nil:
		return u.Callback.Message.Chat.ID
	}
	return 0
}
