// Package mock provides test doubles for the board package.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/ticketvox/internal/board"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// Sink is a recording board.Sink. By default every ticket gets a card with
// the ticket title as "name" and a sequential "id".
type Sink struct {
	mu sync.Mutex

	// SubmitFunc, if set, decides the reply for each ticket. A nil reply
	// marks the submission as failed.
	SubmitFunc func(t ticket.Ticket) map[string]any

	// Submitted records every ticket passed to Submit or SubmitAll.
	Submitted []ticket.Ticket

	// Batches counts SubmitAll calls.
	Batches int
}

// Submit records t and returns the configured reply.
func (s *Sink) Submit(_ context.Context, t ticket.Ticket) map[string]any {
	s.mu.Lock()
	s.Submitted = append(s.Submitted, t)
	n := len(s.Submitted)
	fn := s.SubmitFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(t)
	}
	return map[string]any{"id": fmt.Sprintf("card-%d", n), "name": t.Title}
}

// SubmitAll records the batch and submits each ticket in order.
func (s *Sink) SubmitAll(ctx context.Context, tickets []ticket.Ticket) []board.Outcome {
	s.mu.Lock()
	s.Batches++
	s.mu.Unlock()

	out := make([]board.Outcome, len(tickets))
	for i, t := range tickets {
		out[i] = board.Outcome{Ticket: t, Card: s.Submit(ctx, t)}
		if out[i].Card == nil {
			out[i].Error = "mock: submission failed"
		}
	}
	return out
}

// Tickets returns a copy of the submitted tickets.
func (s *Sink) Tickets() []ticket.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ticket.Ticket, len(s.Submitted))
	copy(out, s.Submitted)
	return out
}

// CardCreator is a recording board.CardCreator.
type CardCreator struct {
	mu sync.Mutex

	// CreateFunc, if set, produces the reply; otherwise {"id": card.Name}.
	CreateFunc func(ctx context.Context, card board.Card) (map[string]any, error)

	Cards []board.Card
}

// CreateCard records card and returns the configured reply.
func (c *CardCreator) CreateCard(ctx context.Context, card board.Card) (map[string]any, error) {
	c.mu.Lock()
	c.Cards = append(c.Cards, card)
	fn := c.CreateFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, card)
	}
	return map[string]any{"id": card.Name}, nil
}

// Created returns a copy of the recorded cards.
func (c *CardCreator) Created() []board.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]board.Card, len(c.Cards))
	copy(out, c.Cards)
	return out
}

var (
	_ board.Sink        = (*Sink)(nil)
	_ board.CardCreator = (*CardCreator)(nil)
)
