package slam

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MetricsMessage is the payload published to {prefix}/metrics.
type MetricsMessage struct {
	Mode      Mode        `json:"mode"`
	Metrics   TickMetrics `json:"metrics"`
	Timestamp int64       `json:"timestamp"`
}

// PoseMessage is the payload published to {prefix}/poses: the end-effector
// position of every body, keyed by name.
type PoseMessage struct {
	Tick      int              `json:"tick"`
	Poses     map[string]Point `json:"poses"`
	Timestamp int64            `json:"timestamp"`
}

// Publisher publishes per-tick telemetry to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	log           *zap.SugaredLogger
	last          *MetricsMessage
	mu            sync.RWMutex
}

// NewPublisher creates a telemetry publisher. A nil client makes every
// publish fail with "not connected".
func NewPublisher(client mqtt.Client, prefix string, log *zap.SugaredLogger) *Publisher {
	if prefix == "" {
		prefix = "armslam"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for telemetry (fire and forget)
		retain:        true, // Retain for latest state
		log:           log,
	}
}

// PublishMetrics publishes one tick's metrics record.
func (p *Publisher) PublishMetrics(mode Mode, m TickMetrics) error {
	msg := &MetricsMessage{Mode: mode, Metrics: m, Timestamp: time.Now().Unix()}

	p.mu.Lock()
	p.last = msg
	p.mu.Unlock()

	if err := p.publish("metrics", msg); err != nil {
		return err
	}
	p.log.Debugw("[MQTT] Published metrics", "tick", m.Tick, "tsdfError", m.FieldError)
	return nil
}

// PublishPoses publishes the end-effector position of every body.
func (p *Publisher) PublishPoses(tick int, poses map[string]Point) error {
	return p.publish("poses", &PoseMessage{Tick: tick, Poses: poses, Timestamp: time.Now().Unix()})
}

// PublishSessionPoses publishes a session's truth, odometry and tracking end effectors
// and the free sensor position.
func (p *Publisher) PublishSessionPoses(s *Session) error {
	return p.PublishPoses(s.Ticks(), map[string]Point{
		TrailTruth:     s.Rig.Truth.EEPos(),
		TrailOdometry:  s.Rig.Odometry.EEPos(),
		"tracking":     s.Rig.Tracking.EEPos(),
		freeSensorPose: s.Rig.Free.Pose().Translation,
	})
}

func (p *Publisher) publish(subtopic string, v interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		return errors.New("MQTT client not connected")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", subtopic)
	}

	topic := p.publishPrefix + "/" + subtopic
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return errors.Wrapf(token.Error(), "publishing to %s", topic)
	}
	return nil
}

// LastMetrics returns the most recently published metrics message.
func (p *Publisher) LastMetrics() (MetricsMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return MetricsMessage{}, false
	}
	return *p.last, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
