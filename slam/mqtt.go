package slam

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// CommandHandler is called for every message on {prefix}/command/{name}.
type CommandHandler func(name string, payload []byte)

// MQTTClient manages the broker connection used for telemetry and remote commands
type MQTTClient struct {
	client         mqtt.Client
	config         MQTTConfig
	log            *zap.SugaredLogger
	commandHandler CommandHandler
	isConnected    bool
	stop           chan struct{}
	stopOnce       sync.Once
	mu             sync.RWMutex
}

// InitMQTT connects to the configured broker in the background. With no
// broker configured MQTT is disabled and this returns nil, nil.
func InitMQTT(config MQTTConfig, log *zap.SugaredLogger, handler CommandHandler) (*MQTTClient, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if config.Broker == "" {
		log.Infow("[MQTT] Disabled: no broker configured")
		return nil, nil
	}

	client := newMQTTClient(nil, config, log, handler)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)

	clientID := config.ClientID
	if clientID == "" {
		clientID = "armslam"
	}
	opts.SetClientID(clientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

func newMQTTClient(client mqtt.Client, config MQTTConfig, log *zap.SugaredLogger, handler CommandHandler) *MQTTClient {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MQTTClient{
		client:         client,
		config:         config,
		log:            log,
		commandHandler: handler,
		stop:           make(chan struct{}),
	}
}

// connectWithRetry attempts to connect to the MQTT broker with exponential
// backoff until it succeeds or the client is disconnected.
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.log.Infow("[MQTT] Connecting", "broker", c.config.Broker)

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.log.Infow("[MQTT] Connected", "broker", c.config.Broker)
				c.setConnected(true)
				return
			}
			c.log.Warnw("[MQTT] Connection failed", "error", token.Error())
		} else {
			c.log.Warnw("[MQTT] Connection timeout")
		}

		c.log.Infow("[MQTT] Retrying connection", "delay", retryDelay)
		select {
		case <-c.stop:
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// CommandTopic returns the wildcard filter for remote commands.
func (c *MQTTClient) CommandTopic() string {
	return c.config.PublishPrefix + "/command/+"
}

// onConnect subscribes to the command topics once the connection is up
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	if c.commandHandler == nil {
		return
	}

	topic := c.CommandTopic()
	token := client.Subscribe(topic, 0, c.handleCommand)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.log.Errorw("[MQTT] Subscribe failed", "topic", topic, "error", token.Error())
		return
	}
	c.log.Infow("[MQTT] Subscribed", "topic", topic)
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.log.Warnw("[MQTT] Connection interrupted, auto-reconnect will retry", "error", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.log.Infow("[MQTT] Reconnecting")
}

// handleCommand dispatches {prefix}/command/{name} messages by name.
func (c *MQTTClient) handleCommand(client mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	name := topic[strings.LastIndex(topic, "/")+1:]
	if name == "" {
		c.log.Warnw("[MQTT] Command without name", "topic", topic)
		return
	}
	c.log.Infow("[MQTT] Command received", "command", name, "size", len(msg.Payload()))
	if c.commandHandler != nil {
		c.commandHandler(name, msg.Payload())
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect stops any pending retry and closes the connection.
func (c *MQTTClient) Disconnect() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.client != nil && c.client.IsConnected() {
		c.log.Infow("[MQTT] Disconnecting")
		c.client.Disconnect(250) // 250ms quiesce time
	}
	c.setConnected(false)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
