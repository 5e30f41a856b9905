package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/sim"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MQTTPublisher publishes state to "<prefix>/state" and stage changes to
// "<prefix>/stage". Reconnects are handled by the paho client.
type MQTTPublisher struct {
	client mqtt.Client
	cfg    MQTTConfig
	logger zerolog.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("anchorsim-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	}

	p := &MQTTPublisher{
		client: mqtt.NewClient(opts),
		cfg:    cfg,
		logger: logger,
	}

	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("MQTT connect timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	return p, nil
}

// PublishSnapshot publishes the tick state. Fire-and-forget; delivery errors
// surface through the client's connection-lost handler.
func (p *MQTTPublisher) PublishSnapshot(snap sim.Snapshot) error {
	data, err := json.Marshal(snapshotMessage{Type: "state", Snapshot: snap})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	p.client.Publish(p.stateTopic(), p.cfg.QoS, false, data)
	return nil
}

// PublishTransition publishes a stage change, retained so late subscribers
// see the current stage.
func (p *MQTTPublisher) PublishTransition(fromStage, toStage string, rodeMeters float64, tick uint64) error {
	data, err := json.Marshal(transitionMessage{
		Type:       "stageTransition",
		FromStage:  fromStage,
		ToStage:    toStage,
		RodeMeters: rodeMeters,
		Tick:       tick,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	p.client.Publish(p.stageTopic(), p.cfg.QoS, true, data)
	return nil
}

func (p *MQTTPublisher) stateTopic() string {
	return p.cfg.TopicPrefix + "/state"
}

func (p *MQTTPublisher) stageTopic() string {
	return p.cfg.TopicPrefix + "/stage"
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(1000)
	}
	return nil
}
