package board

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// LogSink logs tickets instead of creating cards. Replies carry a
// "dry-run-" prefixed ID and "dryRun": true.
type LogSink struct {
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Submit logs t and returns a synthetic card.
func (l *LogSink) Submit(ctx context.Context, t ticket.Ticket) map[string]any {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	desc := format.BoardDescription(t)
	logger.InfoContext(ctx, "dry run: card not submitted", "title", t.Title, "desc", desc)
	if l.Metrics != nil {
		l.Metrics.RecordSubmission(ctx, StatusDryRun)
	}
	return map[string]any{
		"id":     "dry-run-" + uuid.NewString(),
		"name":   t.Title,
		"desc":   desc,
		"dryRun": true,
	}
}

// SubmitAll logs every ticket in order.
func (l *LogSink) SubmitAll(ctx context.Context, tickets []ticket.Ticket) []Outcome {
	out := make([]Outcome, len(tickets))
	for i, t := range tickets {
		out[i] = Outcome{Ticket: t, Card: l.Submit(ctx, t)}
	}
	return out
}

var _ Sink = (*LogSink)(nil)
