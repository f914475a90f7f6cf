package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConfig struct {
	pubSubSystem  string
	requireFanout bool
}

func (m *mockConfig) GetPubSubSystem() string        { return m.pubSubSystem }
func (m *mockConfig) GetRequireResponseFanout() bool { return m.requireFanout }
func (m *mockConfig) GetKafkaBrokers() []string      { return nil }
func (m *mockConfig) GetKafkaClientID() string       { return "" }
func (m *mockConfig) GetKafkaConsumerGroup() string  { return "" }
func (m *mockConfig) GetRabbitMQURL() string         { return "" }
func (m *mockConfig) GetNATSURL() string             { return "" }
func (m *mockConfig) GetNATSMaxReconnects() int      { return 0 }
func (m *mockConfig) GetHTTPServerAddress() string   { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string    { return "" }
func (m *mockConfig) GetAWSRegion() string           { return "" }
func (m *mockConfig) GetAWSAccountID() string        { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string      { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string  { return "" }
func (m *mockConfig) GetAWSEndpoint() string         { return "" }

type mockPublisher struct {
	closed int
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed++
	return nil
}

type mockSubscriber struct {
	closed int
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	m.closed++
	return nil
}

func okBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return Transport{
		Publisher:  &mockPublisher{},
		Subscriber: &mockSubscriber{},
	}, nil
}

func fanout(name string) Backend {
	return Backend{Name: name, Build: okBuilder, Capabilities: Capabilities{SupportsFanout: true}}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fanout("test-transport"))

	b, ok := reg.Lookup("test-transport")
	require.True(t, ok)
	assert.Equal(t, "test-transport", b.Capabilities.Name, "capabilities take the backend name")
	assert.True(t, reg.GetCapabilities("test-transport").SupportsFanout)
}

func TestRegistry_GetCapabilities_Unknown(t *testing.T) {
	caps := NewRegistry().GetCapabilities("unknown")
	assert.Equal(t, "unknown", caps.Name)
	assert.False(t, caps.SupportsFanout)
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fanout("test-transport"))

	tr, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "test-transport"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestRegistry_Build_DefaultsToChannel(t *testing.T) {
	reg := NewRegistry()
	var built string
	reg.Register(Backend{
		Name: DefaultTransport,
		Build: func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
			built = DefaultTransport
			return Transport{}, nil
		},
		Capabilities: Capabilities{SupportsFanout: true},
	})

	_, err := reg.Build(context.Background(), &mockConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "channel", built)
}

func TestRegistry_Build_NilConfig(t *testing.T) {
	_, err := NewRegistry().Build(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "config is required")
}

func TestRegistry_Build_UnknownTransport(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fanout("kafka"))

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "unknown-transport"}, nil)
	assert.ErrorContains(t, err, "unknown transport")
	assert.ErrorContains(t, err, "kafka")
}

func TestRegistry_Build_BuilderError(t *testing.T) {
	reg := NewRegistry()
	expectedErr := errors.New("builder error")
	reg.Register(Backend{
		Name: "failing-transport",
		Build: func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
			return Transport{}, expectedErr
		},
		Capabilities: Capabilities{SupportsFanout: true},
	})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "failing-transport"}, nil)
	assert.ErrorIs(t, err, expectedErr)
	assert.ErrorContains(t, err, "failing-transport")
}

func TestRegistry_Build_RefusesCompetingBackendWhenFanoutRequired(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Backend{Name: "point-to-point", Build: okBuilder})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "point-to-point", requireFanout: true}, nil)
	assert.ErrorIs(t, err, ErrNoFanout)

	reg.Register(fanout("broadcast"))
	_, err = reg.Build(context.Background(), &mockConfig{pubSubSystem: "broadcast", requireFanout: true}, nil)
	assert.NoError(t, err)
}

func TestRegistry_Build_WarnsAboutCompetingBackend(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Backend{Name: "point-to-point", Build: okBuilder})
	logger := watermill.NewCaptureLogger()

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "point-to-point"}, logger)
	require.NoError(t, err)
	assert.True(t, logger.Has(watermill.CapturedMessage{
		Level:  watermill.InfoLogLevel,
		Fields: watermill.LogFields{"transport": "point-to-point"},
		Msg:    "Transport does not fan out responses, replicas sharing the source topic compete for them",
	}))
}

func TestRegistry_NamesAreSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fanout("nats"))
	reg.Register(fanout("aws"))
	reg.Register(fanout("kafka"))

	assert.Equal(t, []string{"aws", "kafka", "nats"}, reg.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Register(fanout("transport"))
				reg.Lookup("transport")
				reg.Names()
				reg.GetCapabilities("transport")
			}
		}()
	}
	wg.Wait()

	_, ok := reg.Lookup("transport")
	assert.True(t, ok)
}

func TestBuildWithDefaultRegistry(t *testing.T) {
	_, err := Build(context.Background(), &mockConfig{pubSubSystem: "nonexistent"}, nil)
	assert.Error(t, err)
}
