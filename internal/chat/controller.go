// Package chat drives one conversation: it keeps the history, interprets the
// command surface and dispatches turns to the language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/rag"
	"github.com/felixgeelhaar/ragchat/internal/store"
	"github.com/felixgeelhaar/ragchat/internal/ui"
)

var (
	ErrHistoryTooShort    = errors.New("history has fewer than two turns")
	ErrInvalidTopN        = errors.New("top n must be a positive integer")
	ErrInvalidTemperature = errors.New("temperature must be a number")
)

// Reply is the outcome of a successful turn.
type Reply struct {
	Content   string
	Retrieved []store.Result
	Usage     provider.Usage
}

type Option func(*Controller)

func WithObserver(obs *observe.Observer) Option {
	return func(c *Controller) { c.obs = observe.OrDiscard(obs) }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithEventBus(bus *EventBus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.bus = bus
		}
	}
}

func WithUI(u ui.UI) Option {
	return func(c *Controller) { c.SetUI(u) }
}

// Controller owns the history and session settings of one conversation.
// It is not safe for concurrent turns.
type Controller struct {
	id        string
	session   *config.Session
	history   *History
	strategy  *rag.Strategy
	retriever rag.Retriever
	provider  provider.Provider
	bus       *EventBus
	obs       *observe.Observer
	metrics   *observe.Metrics
	ui        ui.UI
}

func New(p provider.Provider, r rag.Retriever, session *config.Session, a rag.Assembler, opts ...Option) *Controller {
	c := &Controller{
		id:        uuid.NewString(),
		session:   session,
		history:   NewHistory(),
		strategy:  rag.NewStrategy(r, session, a),
		retriever: r,
		provider:  p,
		bus:       NewEventBus(),
		obs:       observe.Discard(),
		ui:        ui.SilentUI{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) SetUI(u ui.UI) {
	if u != nil {
		c.ui = u
	}
}

// ID identifies the session in logs and events.
func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Session() *config.Session {
	return c.session
}

func (c *Controller) Events() *EventBus {
	return c.bus
}

// History returns a copy of the persisted turns.
func (c *Controller) History() []provider.Message {
	return c.history.Messages()
}

// Submit retrieves context for input, streams the model reply to the UI and,
// only once the stream has completed, appends the user and assistant turns.
// On failure history is left untouched and the partial reply is discarded.
func (c *Controller) Submit(ctx context.Context, input string) (*Reply, error) {
	ctx, span := c.obs.StartSpan(ctx, "chat.Submit")
	defer span.End()

	log := c.obs.Log().With().Str("session", c.id).Logger()
	c.bus.PublishWithData(EventTurnSubmitted, c.id, map[string]any{"input": input})

	history := c.history.Messages()
	userTurn := c.strategy.UserTurn(input, history)
	turns, retrieved, err := c.strategy.ChatTurns(ctx, input, history)
	if err != nil {
		return nil, c.fail(err)
	}
	c.bus.PublishWithData(EventRetrieval, c.id, map[string]any{"count": len(retrieved), "top_n": c.session.TopN})

	if c.session.Debug {
		for _, turn := range turns {
			c.ui.Log(fmt.Sprintf("%s: %s", capitalize(turn.Role), turn.Content))
		}
	}

	req := provider.Request{
		Messages:         turns,
		System:           c.session.SystemMessage,
		MaxTokens:        c.session.MaxTokens,
		Temperature:      c.session.Temperature,
		Stop:             c.session.StopSequences,
		PresencePenalty:  c.session.PresencePenalty,
		FrequencyPenalty: c.session.FrequencyPenalty,
	}

	c.ui.UpdateStatus("generating")
	resp, err := c.provider.Stream(ctx, req, func(chunk string) error {
		c.ui.Stream(chunk)
		return nil
	})
	c.ui.UpdateStatus("idle")
	if err != nil {
		return nil, c.fail(fmt.Errorf("generation failed: %w", err))
	}

	c.history.AppendPair(userTurn, provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
	c.metrics.Turn("ok")
	c.bus.PublishWithData(EventTurnCompleted, c.id, map[string]any{
		"history":       c.history.Len(),
		"output_tokens": resp.Usage.CompletionTokens,
	})
	log.Debug().Int("retrieved", len(retrieved)).Int("history", c.history.Len()).Msg("turn completed")

	return &Reply{Content: resp.Content, Retrieved: retrieved, Usage: resp.Usage}, nil
}

func (c *Controller) fail(err error) error {
	result := "error"
	if errors.Is(err, context.Canceled) {
		result = "canceled"
	}
	c.metrics.Turn(result)
	c.bus.PublishWithData(EventTurnFailed, c.id, map[string]any{"error": err.Error()})
	c.obs.Log().Warn().Str("session", c.id).Err(err).Msg("turn failed")
	return err
}

// Retry removes the last exchange and resubmits its user input. When the
// resubmission fails the removed exchange is not restored.
func (c *Controller) Retry(ctx context.Context) (*Reply, error) {
	removed, err := c.history.TruncateLast(2)
	if err != nil {
		return nil, err
	}
	c.bus.PublishWithData(EventHistoryTruncated, c.id, map[string]any{"removed": 2, "retry": true})
	return c.Submit(ctx, removed[0].Content)
}

// Back removes the last exchange without resubmitting it.
func (c *Controller) Back() error {
	if _, err := c.history.TruncateLast(2); err != nil {
		return err
	}
	c.bus.PublishWithData(EventHistoryTruncated, c.id, map[string]any{"removed": 2, "retry": false})
	return nil
}

// New clears the history.
func (c *Controller) New() {
	c.history.Clear()
	c.bus.PublishWithData(EventHistoryCleared, c.id, nil)
}

func (c *Controller) SetPrompt(text string) {
	c.session.SystemMessage = text
	c.settingsChanged("system_message", text)
}

// SetTopN accepts only strictly positive integers.
func (c *Controller) SetTopN(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidTopN, value)
	}
	c.session.TopN = n
	c.settingsChanged("top_n", n)
	return nil
}

// SetTemperature accepts any finite number.
func (c *Controller) SetTemperature(value string) error {
	t, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidTemperature, value)
	}
	c.session.Temperature = t
	c.settingsChanged("temperature", t)
	return nil
}

func (c *Controller) settingsChanged(key string, value any) {
	c.bus.PublishWithData(EventSettingsChanged, c.id, map[string]any{"key": key, "value": value})
}

// Search queries the store without touching history.
func (c *Controller) Search(ctx context.Context, text string) ([]store.Result, error) {
	return c.retriever.Query(ctx, text, store.DefaultTopN)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
