// Package transporttest provides fakes for exercising transport builders
// without a broker.
package transporttest

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a field-backed transport.Config.
type Config struct {
	PubSubSystem          string
	RequireResponseFanout bool
	KafkaBrokers          []string
	KafkaClientID         string
	KafkaConsumerGroup    string
	RabbitMQURL           string
	NATSURL               string
	NATSMaxReconnects     int
	HTTPServerAddress     string
	HTTPPublisherURL      string
	AWSRegion             string
	AWSAccountID          string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpoint           string
}

func (c *Config) GetPubSubSystem() string        { return c.PubSubSystem }
func (c *Config) GetRequireResponseFanout() bool { return c.RequireResponseFanout }
func (c *Config) GetKafkaBrokers() []string      { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string       { return c.KafkaClientID }
func (c *Config) GetKafkaConsumerGroup() string  { return c.KafkaConsumerGroup }
func (c *Config) GetRabbitMQURL() string         { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string             { return c.NATSURL }
func (c *Config) GetNATSMaxReconnects() int      { return c.NATSMaxReconnects }
func (c *Config) GetHTTPServerAddress() string   { return c.HTTPServerAddress }
func (c *Config) GetHTTPPublisherURL() string    { return c.HTTPPublisherURL }
func (c *Config) GetAWSRegion() string           { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string        { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string      { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string  { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string         { return c.AWSEndpoint }

// Publisher discards messages.
type Publisher struct{}

func (Publisher) Publish(string, ...*message.Message) error { return nil }
func (Publisher) Close() error                              { return nil }

// Subscriber never delivers.
type Subscriber struct{}

func (Subscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (Subscriber) Close() error { return nil }
