package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel gateway instances share.
const DefaultChannel = "alumni-chat:events"

var brokerLog = log.With("broker")

var ErrBrokerClosed = errors.New("broker closed")

// Envelope is one encoded event addressed to a room.
type Envelope struct {
	Room  string          `json:"room"`
	Skip  string          `json:"skip,omitempty"`
	Frame json.RawMessage `json:"frame"`
}

// Broker carries envelopes to every gateway instance, including the
// publishing one.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Messages() <-chan Envelope
	Close() error
}

// LocalBroker is the single-instance broker.
type LocalBroker struct {
	ch        chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func NewLocalBroker(buffer int) *LocalBroker {
	if buffer <= 0 {
		buffer = 1024
	}
	return &LocalBroker{ch: make(chan Envelope, buffer), done: make(chan struct{})}
}

func (b *LocalBroker) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.ch <- env:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroker) Messages() <-chan Envelope { return b.ch }

// Close stops accepting envelopes. Messages is left open; the hub stops
// on its own context.
func (b *LocalBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// RedisBroker fans envelopes out over redis PUBLISH/SUBSCRIBE so several
// gateway instances share rooms.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	sub     *redis.PubSub
	out     chan Envelope
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRedisBroker subscribes to channel and waits for the subscription
// to be confirmed.
func NewRedisBroker(ctx context.Context, client redis.UniversalClient, channel string) (*RedisBroker, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	b := &RedisBroker{
		client:  client,
		channel: channel,
		sub:     sub,
		out:     make(chan Envelope, 1024),
		done:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.pump()
	return b, nil
}

func (b *RedisBroker) pump() {
	defer b.wg.Done()
	defer close(b.out)

	for msg := range b.sub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			brokerLog.Warn("dropping malformed envelope on %s: %v", b.channel, err)
			continue
		}
		select {
		case b.out <- env:
		case <-b.done:
			return
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Messages() <-chan Envelope { return b.out }

// Close unsubscribes and waits for the receive loop to finish.
func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		err = b.sub.Close()
		b.wg.Wait()
	})
	return err
}
