package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const runEventBufferSize = 32

// Run event types.
const (
	RunEventSnapshot = "snapshot"
	RunEventStarted  = "started"
	RunEventProgress = "progress"
	RunEventFinished = "finished"
	// RunEventCancelRequested asks the instance that owns a run to stop it.
	RunEventCancelRequested = "cancel_requested"
)

// RunEvent is a lifecycle or progress notification for one run.
type RunEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	QueueID    string    `json:"queue_id"`
	Status     RunStatus `json:"status"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	FailedTask *EvalTask `json:"failed_task,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// RunEventBus fans run events out to local subscribers and, when configured,
// to other API instances over Redis pub/sub and NATS.
type RunEventBus interface {
	Publish(ctx context.Context, event RunEvent)
	Subscribe(queueID string) (<-chan RunEvent, func())
	// Observe registers a callback for events received from other instances.
	Observe(fn func(RunEvent))
	Start(ctx context.Context)
}

type runEventEnvelope struct {
	Source string   `json:"source"`
	Event  RunEvent `json:"event"`
}

type runEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[string]map[chan RunEvent]struct{}
	observers   []func(RunEvent)
}

// NewRunEventBus constructs an event bus. Both transports are optional.
func NewRunEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) RunEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":runs"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".runs"
	}

	return &runEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "run_events").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[string]map[chan RunEvent]struct{}),
	}
}

// Start consumes events from other instances. Redis wins when both
// transports are configured so remote events are not delivered twice.
func (b *runEventBus) Start(ctx context.Context) {
	switch {
	case b.redis != nil && b.redisChannel != "":
		go b.consumeRedis(ctx)
	case b.nats != nil && b.natsSubject != "":
		go b.consumeNATS(ctx)
	}
}

func (b *runEventBus) Publish(ctx context.Context, event RunEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.broadcast(event)

	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(runEventEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode run event")
		return
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Str("run_id", event.RunID).Msg("failed to publish run event to redis")
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Str("run_id", event.RunID).Msg("failed to publish run event to nats")
		}
	}
}

// Subscribe registers a listener for one queue. Slow listeners drop events
// rather than block the run.
func (b *runEventBus) Subscribe(queueID string) (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, runEventBufferSize)

	b.mu.Lock()
	if _, exists := b.subscribers[queueID]; !exists {
		b.subscribers[queueID] = make(map[chan RunEvent]struct{})
	}
	b.subscribers[queueID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subscribers, ok := b.subscribers[queueID]; ok {
				delete(subscribers, ch)
				close(ch)
				if len(subscribers) == 0 {
					delete(b.subscribers, queueID)
				}
			}
		})
	}
}

func (b *runEventBus) Observe(fn func(RunEvent)) {
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

func (b *runEventBus) broadcast(event RunEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.QueueID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *runEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("run event redis subscription closed")
			return
		}
		b.handle([]byte(msg.Payload))
	}
}

func (b *runEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handle(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats run subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain run event subscription")
		}
	}()
}

func (b *runEventBus) handle(payload []byte) {
	var envelope runEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid run event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}

	b.mu.RLock()
	observers := append([]func(RunEvent){}, b.observers...)
	b.mu.RUnlock()
	for _, observe := range observers {
		observe(envelope.Event)
	}
	b.broadcast(envelope.Event)
}
