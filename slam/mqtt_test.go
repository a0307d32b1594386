package slam

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMQTT_Disabled(t *testing.T) {
	client, err := InitMQTT(MQTTConfig{PublishPrefix: "armslam"}, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

// TestInitMQTT_ReturnsImmediately verifies that an unreachable broker does not
// block startup; the connection is retried in the background.
func TestInitMQTT_ReturnsImmediately(t *testing.T) {
	config := MQTTConfig{Broker: "tcp://127.0.0.1:1", PublishPrefix: "armslam"}

	start := time.Now()
	client, err := InitMQTT(config, nil, func(string, []byte) {})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Disconnect()

	assert.Less(t, elapsed, 2*time.Second)
	assert.False(t, client.IsConnected())
	assert.NotNil(t, client.GetClient())
}

func TestMQTTClient_IsConnected(t *testing.T) {
	client := &MQTTClient{}
	assert.False(t, client.IsConnected(), "New client should not be connected")

	client.setConnected(true)
	assert.True(t, client.IsConnected(), "Client should be connected after setConnected(true)")

	client.setConnected(false)
	assert.False(t, client.IsConnected(), "Client should not be connected after setConnected(false)")
}

// TestMQTTClient_ConcurrentAccess tests thread-safe access to client state
func TestMQTTClient_ConcurrentAccess(t *testing.T) {
	client := &MQTTClient{}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				client.setConnected(j%2 == 0)
				_ = client.IsConnected()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestMQTTClient_CommandTopic(t *testing.T) {
	client := newMQTTClient(nil, MQTTConfig{PublishPrefix: "lab/arm"}, nil, nil)
	assert.Equal(t, "lab/arm/command/+", client.CommandTopic())
}

func TestOnConnect_SubscribesCommandTopic(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	client := newMQTTClient(mock, MQTTConfig{PublishPrefix: "armslam"}, nil, func(string, []byte) {})
	client.onConnect(mock)

	assert.True(t, client.IsConnected())
	assert.True(t, mock.Subscribed("armslam/command/+"))
}

func TestOnConnect_NoHandlerSkipsSubscription(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	client := newMQTTClient(mock, MQTTConfig{PublishPrefix: "armslam"}, nil, nil)
	client.onConnect(mock)

	assert.True(t, client.IsConnected())
	assert.False(t, mock.Subscribed("armslam/command/+"))
}

func TestOnConnect_SubscribeError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetSubscribeError(errors.New("denied"))

	client := newMQTTClient(mock, MQTTConfig{PublishPrefix: "armslam"}, nil, func(string, []byte) {})
	client.onConnect(mock)

	assert.True(t, client.IsConnected(), "subscribe failure does not drop the connection")
	assert.False(t, mock.Subscribed("armslam/command/+"))
}

func TestHandleCommand_DispatchesByName(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}
	handler := func(name string, payload []byte) {
		mu.Lock()
		got[name] = string(payload)
		mu.Unlock()
	}

	mock := NewMockClient()
	mock.SetConnected(true)
	client := newMQTTClient(mock, MQTTConfig{PublishPrefix: "armslam"}, nil, handler)
	client.onConnect(mock)

	mock.SimulateMessage("armslam/command/perturb", []byte(`{"scale":0.2}`))
	mock.SimulateMessage("armslam/command/stop", nil)
	mock.SimulateMessage("other/command/stop", []byte("ignored"))
	mock.SimulateMessage("armslam/command/", []byte("no name"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"perturb": `{"scale":0.2}`, "stop": ""}, got)
}

func TestOnConnectionLost(t *testing.T) {
	client := newMQTTClient(NewMockClient(), MQTTConfig{}, nil, nil)
	client.setConnected(true)
	client.onConnectionLost(nil, errors.New("broken pipe"))
	assert.False(t, client.IsConnected())
}

func TestConnectWithRetry_Succeeds(t *testing.T) {
	mock := NewMockClient()
	var calls atomic.Int32
	mock.SetOnConnect(func(mqtt.Client) { calls.Add(1) })

	client := newMQTTClient(mock, MQTTConfig{Broker: "tcp://mock:1883", PublishPrefix: "armslam"}, nil, nil)
	client.connectWithRetry()

	assert.True(t, client.IsConnected())
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnectWithRetry_StopsOnDisconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnectError(errors.New("refused"))
	client := newMQTTClient(mock, MQTTConfig{Broker: "tcp://mock:1883"}, nil, nil)

	done := make(chan struct{})
	go func() {
		client.connectWithRetry()
		close(done)
	}()
	client.Disconnect()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("connectWithRetry did not stop after Disconnect")
	}
	assert.False(t, client.IsConnected())
}

func TestMQTTDisconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	client := newMQTTClient(mock, MQTTConfig{}, nil, nil)
	client.setConnected(true)

	client.Disconnect()
	client.Disconnect()
	assert.False(t, client.IsConnected())
	assert.False(t, mock.IsConnected())
}
