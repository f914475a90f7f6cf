package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	configpkg "github.com/drblury/replyflow/internal/runtime/config"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	transportpkg "github.com/drblury/replyflow/internal/runtime/transport"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

type publishedMessage struct {
	topic string
	msg   *message.Message
}

type testPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	closed    int
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, msg := range messages {
		p.published = append(p.published, publishedMessage{topic: topic, msg: msg})
	}
	return nil
}

func (p *testPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *testPublisher) Messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]publishedMessage, len(p.published))
	copy(clone, p.published)
	return clone
}

func (p *testPublisher) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type testSubscriber struct {
	err    error
	closed int
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error {
	s.closed++
	return nil
}

type staticTransportFactory struct {
	transport transportpkg.Transport
	err       error
	calls     int
}

func (f *staticTransportFactory) Build(ctx context.Context, conf *configpkg.Config, logger watermill.LoggerAdapter) (transportpkg.Transport, error) {
	f.calls++
	if f.err != nil {
		return transportpkg.Transport{}, f.err
	}
	return f.transport, nil
}

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		PubSubSystem: "channel",
		SourceTopic:  "responses",
		SinkTopic:    "requests",
	}
}

func newTestService(t *testing.T, conf *configpkg.Config, deps ServiceDependencies) (*Service, *testPublisher, *testSubscriber) {
	t.Helper()
	pub := &testPublisher{}
	sub := &testSubscriber{}
	if deps.TransportFactory == nil {
		deps.TransportFactory = &staticTransportFactory{transport: transportpkg.Transport{Publisher: pub, Subscriber: sub}}
	}
	svc, err := NewService(conf, newTestLogger(), context.Background(), deps)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, pub, sub
}
