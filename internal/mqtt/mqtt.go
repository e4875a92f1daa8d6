package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/i474232898/bike-occupancy/internal/config"
)

// Handler receives the raw payload of every message on the subscribed topic.
type Handler func(ctx context.Context, payload []byte) error

// Subscriber feeds ingestion documents published by gateways into a Handler.
type Subscriber struct {
	client    pahomqtt.Client
	cfg       config.MQTTConfig
	handler   Handler
	logger    *zap.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber configures a client with auto-reconnect. It does not connect.
func NewSubscriber(cfg config.MQTTConfig, handler Handler, logger *zap.Logger) *Subscriber {
	s := &Subscriber{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscriptions do not survive a clean-session reconnect; restore them here.
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.Int("port", cfg.Port))
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", zap.String("topic", cfg.Topic), zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	s.client = pahomqtt.NewClient(opts)
	return s
}

// Connect establishes the connection, waiting until ctx is done or the
// subscriber is stopped. The subscription is made by the on-connect handler.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()
	for !token.WaitTimeout(250 * time.Millisecond) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe() error {
	token := s.client.Subscribe(s.cfg.Topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", zap.String("topic", s.cfg.Topic))
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", zap.String("topic", topic), zap.Int("size", len(payload)))
	if s.handler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.handler(ctx, payload); err != nil {
		s.logger.Warn("dropping mqtt message", zap.String("topic", topic), zap.Error(err))
	}
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
