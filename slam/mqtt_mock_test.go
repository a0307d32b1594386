package slam

import (
	"sync"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMockClient_Connect(t *testing.T) {
	mock := NewMockClient()
	assert.False(t, mock.IsConnected())

	token := mock.Connect()
	assert.True(t, token.Wait())
	assert.NoError(t, token.Error())
	assert.True(t, mock.IsConnected())
	assert.True(t, mock.IsConnectionOpen())
}

func TestMockClient_ConnectWithError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnectError(errors.New("connection refused"))

	token := mock.Connect()
	assert.Error(t, token.Error())
	assert.False(t, mock.IsConnected())
}

func TestMockClient_Publish(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	mock.Publish("armslam/metrics", 0, true, []byte(`{"tick":1}`))
	mock.Publish("armslam/poses", 1, false, "text")

	msgs := mock.GetPublishedMessages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, "armslam/metrics", msgs[0].Topic)
	assert.True(t, msgs[0].Retain)
	assert.Equal(t, []byte("text"), msgs[1].Payload)
	assert.Equal(t, byte(1), msgs[1].QoS)

	assert.Len(t, mock.PublishedOn("armslam/poses"), 1)
	assert.Empty(t, mock.PublishedOn("armslam/other"))
}

func TestMockClient_PublishNotConnected(t *testing.T) {
	mock := NewMockClient()
	token := mock.Publish("armslam/metrics", 0, false, []byte("x"))
	assert.ErrorIs(t, token.Error(), mqtt.ErrNotConnected)
	assert.Empty(t, mock.GetPublishedMessages())

	mock.SetConnected(true)
	mock.SetPublishError(errors.New("quota"))
	assert.Error(t, mock.Publish("armslam/metrics", 0, false, []byte("x")).Error())
}

func TestMockClient_Subscribe(t *testing.T) {
	mock := NewMockClient()
	assert.ErrorIs(t, mock.Subscribe("a/b", 0, nil).Error(), mqtt.ErrNotConnected)

	mock.SetConnected(true)
	var got []string
	handler := func(_ mqtt.Client, msg mqtt.Message) { got = append(got, msg.Topic()) }
	assert.NoError(t, mock.Subscribe("armslam/command/+", 0, handler).Error())
	assert.True(t, mock.Subscribed("armslam/command/+"))

	mock.SimulateMessage("armslam/command/stop", nil)
	mock.SimulateMessage("armslam/command/stop/extra", nil)
	assert.Equal(t, []string{"armslam/command/stop"}, got)

	mock.Unsubscribe("armslam/command/+")
	mock.SimulateMessage("armslam/command/stop", nil)
	assert.Len(t, got, 1)
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"a/b", "a/b", true},
		{"a/+", "a/b", true},
		{"a/+", "a/b/c", false},
		{"a/#", "a/b/c", true},
		{"a/b", "a/c", false},
		{"a/b/c", "a/b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topicMatches(tt.filter, tt.topic), "%s vs %s", tt.filter, tt.topic)
	}
}

func TestMockClient_Disconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.Disconnect(0)
	assert.False(t, mock.IsConnected())
}

func TestMockClient_ConcurrentOperations(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				mock.Publish("armslam/metrics", 0, false, []byte("x"))
				_ = mock.GetPublishedMessages()
				_ = mock.IsConnected()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, mock.GetPublishedMessages(), 500)
}
