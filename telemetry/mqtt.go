package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	logger "github.com/sirupsen/logrus"
)

const mqttTimeout = 10 * time.Second

var ErrMQTTTimeout = errors.New("mqtt operation timed out")

// MQTTPublisher publishes readings to channels/<id>/publish.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher builds a client for broker (tcp://host:1883 or
// ssl://host:8883). It connects on first publish.
func NewMQTTPublisher(broker, channelID, clientID, username, password string) *MQTTPublisher {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnf("MQTT connection lost [%v]", err)
		})
	return newMQTTPublisher(mqtt.NewClient(opts), channelID)
}

func newMQTTPublisher(client mqtt.Client, channelID string) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  fmt.Sprintf("channels/%s/publish", channelID),
	}
}

func (m *MQTTPublisher) Name() string {
	return "mqtt"
}

func (m *MQTTPublisher) Topic() string {
	return m.topic
}

func (m *MQTTPublisher) Publish(ctx context.Context, r Reading) error {
	if !m.client.IsConnected() {
		if err := wait(ctx, m.client.Connect()); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		logger.Info("MQTT connected")
	}
	vals, err := r.Values()
	if err != nil {
		return err
	}
	if err := wait(ctx, m.client.Publish(m.topic, 0, false, vals.Encode())); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (m *MQTTPublisher) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

func wait(ctx context.Context, t mqtt.Token) error {
	timer := time.NewTimer(mqttTimeout)
	defer timer.Stop()
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrMQTTTimeout
	}
}
