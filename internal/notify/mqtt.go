package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

const (
	mqttQoS            = 1
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectWait = 250 // ms
)

// ConnectMQTT dials the broker and returns a connected client that
// reconnects on its own after a lost connection.
func ConnectMQTT(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", brokerURL).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// DisconnectMQTT closes the client after in-flight messages had a short
// chance to leave.
func DisconnectMQTT(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(mqttDisconnectWait)
		log.Info().Msg("MQTT client disconnected")
	}
}

// MQTT publishes JSON events to broker topics:
//
//	<prefix>/failures
//	<prefix>/<content_type>/<content_id>/upcoming
//	<prefix>/<content_type>/<content_id>/published
type MQTT struct {
	client mqtt.Client
	prefix string
	now    func() time.Time
}

func NewMQTT(client mqtt.Client, prefix string) *MQTT {
	return &MQTT{client: client, prefix: strings.TrimSuffix(prefix, "/"), now: time.Now}
}

func (m *MQTT) NotifyFailureBatch(ctx context.Context, failures []model.FailureReport) error {
	return m.publish(ctx, m.prefix+"/failures", Event{Kind: KindFailureBatch, At: m.now(), Failures: failures})
}

func (m *MQTT) NotifyUpcoming(ctx context.Context, s model.Schedule) error {
	return m.publish(ctx, m.contentTopic(s, KindUpcoming), Event{Kind: KindUpcoming, At: m.now(), Schedule: &s})
}

func (m *MQTT) NotifyPublished(ctx context.Context, s model.Schedule) error {
	return m.publish(ctx, m.contentTopic(s, KindPublished), Event{Kind: KindPublished, At: m.now(), Schedule: &s})
}

func (m *MQTT) contentTopic(s model.Schedule, kind string) string {
	return fmt.Sprintf("%s/%s/%d/%s", m.prefix, strings.ToLower(string(s.ContentType)), s.ContentID, kind)
}

func (m *MQTT) publish(ctx context.Context, topic string, ev Event) error {
	payload, err := ev.encode()
	if err != nil {
		return err
	}

	wait := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}

	token := m.client.Publish(topic, mqttQoS, false, payload)
	if !token.WaitTimeout(wait) {
		return errors.Newf("mqtt publish to %s timed out after %s", topic, wait)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "mqtt publish to %s", topic)
	}
	return nil
}
