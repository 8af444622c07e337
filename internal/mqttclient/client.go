// Package mqttclient publishes recording library changes to an MQTT broker
// so other devices can refresh without polling.
package mqttclient

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/storage"
)

const publishTimeout = 5 * time.Second

type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Log         zerolog.Logger
}

// Client publishes storage changes. It implements storage.Notifier.
type Client struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	published atomic.Int64
	log       zerolog.Logger
}

// Event is the JSON payload published for each change.
type Event struct {
	Action    storage.Action `json:"action"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log.With().Str("component", "mqtt").Logger(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("prefix", c.prefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Notify publishes ch at QoS 1 without waiting for the broker.
func (c *Client) Notify(ch storage.Change) {
	payload, err := json.Marshal(NewEvent(ch))
	if err != nil {
		c.log.Error().Err(err).Msg("encode change event")
		return
	}
	topic := Topic(c.prefix, ch.Recording.ID)
	token := c.conn.Publish(topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			c.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
			return
		}
		c.published.Add(1)
	}()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Published counts acknowledged publishes.
func (c *Client) Published() int64 { return c.published.Load() }

func (c *Client) Close() {
	c.log.Info().Int64("published", c.published.Load()).Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// NewEvent builds the payload for a change.
func NewEvent(ch storage.Change) Event {
	return Event{
		Action:    ch.Action,
		ID:        ch.Recording.ID,
		Title:     ch.Recording.Title,
		UpdatedAt: ch.Recording.UpdatedAt,
	}
}

// Topic is {prefix}/recordings/{id}, or recordings/{id} without a prefix.
func Topic(prefix, id string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "recordings/" + id
	}
	return prefix + "/recordings/" + id
}
