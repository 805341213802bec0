package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NewMQTTClient 创建并连接MQTT客户端
func NewMQTTClient(cfg *config.MQTTConfig) (mqtt.Client, error) {
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

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// MQTTPublisher 发布事件到 <prefix>/<type>
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTPublisher(client mqtt.Client, topicPrefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:    qos,
	}
}

// Topic returns the topic used for an event type.
func (p *MQTTPublisher) Topic(eventType string) string {
	return p.prefix + "/" + eventType
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	topic := p.Topic(ev.Type)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250) // 250ms等待时间
}
