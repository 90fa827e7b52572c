package mqttx

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// State 连接状态机：Disconnected → Connecting → Connected
// 任何掉线都会在固定间隔后自动重连，回到 Connecting。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MessageHandler 消息处理函数类型
type MessageHandler = func(topic string, payload []byte) error

// Client MQTT客户端封装
// 登记的订阅在每次连接建立时整体重放（重连后从零重新订阅，
// 掉线期间的消息不保证缓冲，协议靠整页快照自愈）。
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger
	state  atomic.Int32

	mu   sync.Mutex
	subs map[string]MessageHandler
}

// NewClient 创建MQTT客户端（不立即连接）
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) *Client {
	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	// 固定重连间隔（不做指数退避）
	opts.SetConnectRetryInterval(cfg.ReconnectInterval)
	opts.SetMaxReconnectInterval(cfg.ReconnectInterval)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.state.Store(int32(StateConnecting))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect 建立连接
func (c *Client) Connect() error {
	c.state.Store(int32(StateConnecting))
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Subscribe 订阅主题并登记（重连后自动重放）
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	connected := c.client.IsConnected()
	c.mu.Unlock()

	if !connected {
		// 连接建立时由 onConnect 重放
		return nil
	}
	return c.subscribe(topic, handler)
}

// Unsubscribe 取消订阅并移除登记
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	connected := c.client.IsConnected()
	c.mu.Unlock()

	if !connected {
		return nil
	}

	token := c.client.Unsubscribe(topics...)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}

// Publish 发布消息
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.config.QoS, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
	c.state.Store(int32(StateDisconnected))
}

// State 当前连接状态
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.state.Store(int32(StateConnected))

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subs))
	for topic, handler := range c.subs {
		subs[topic] = handler
	}
	c.mu.Unlock()

	c.logger.Info("MQTT connected, replaying subscriptions",
		zap.String("broker", c.config.Broker),
		zap.Int("subscriptions", len(subs)),
	)

	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.Error("Failed to resubscribe after connect",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.state.Store(int32(StateConnecting))
	c.logger.Warn("MQTT connection lost, reconnecting",
		zap.Duration("reconnect_interval", c.config.ReconnectInterval),
		zap.Error(err),
	)
}

func (c *Client) subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}
