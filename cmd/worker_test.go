package cmd

import (
	"context"
	"sync"
	"testing"

	"github.com/mymiscarriage/apiserver/internal/events"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replayBackend struct {
	mu         sync.Mutex
	subscribed []string
}

func (b *replayBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (b *replayBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	b.mu.Lock()
	b.subscribed = append(b.subscribed, channel)
	b.mu.Unlock()
	return handler(ctx, mq.Message{ID: "1", Data: []byte(`{"type":"` + channel + `","testimony_id":"t-1","status":"pending"}`)})
}

func (b *replayBackend) Close() error { return nil }

func TestRunWorker_SubscribesToBothChannels(t *testing.T) {
	backend := &replayBackend{}

	require.NoError(t, runWorker(context.Background(), mq.New(backend), logging.Nop()))
	assert.ElementsMatch(t, []string{events.ChannelSubmitted, events.ChannelModerated}, backend.subscribed)
}

func TestRunWorker_CancelledIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	queue := mq.New(&blockingBackend{})
	assert.NoError(t, runWorker(ctx, queue, logging.Nop()))
}

type blockingBackend struct{ replayBackend }

func (b *blockingBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"server", "migrate", "worker", "export", "signup-key"} {
		assert.True(t, names[want], want)
	}
}

func TestMigrateSubcommands(t *testing.T) {
	var names []string
	for _, c := range migrateCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "version"}, names)
}
