// Package mqtt delivers close-call events to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

const (
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250 // ms
)

// client is the part of paho.Client the sink uses.
type client interface {
	Connect() paho.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Sink publishes each payload to one topic.
type Sink struct {
	client client
	topic  string
	qos    byte
	logger logging.Logger
}

// New connects to the broker described by `cfg`. An unreachable broker is logged and not an
// error: the client reconnects on its own and Send retries the connection. Bad TLS material is an
// error.
func New(cfg config.MQTTConfig, logger logging.Logger) (*Sink, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Server).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnw("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			logger.Infow("mqtt connected", "broker", cfg.Server)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.CA != "" || cfg.Cert != "" {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	routeLogs(logger)

	s := newSink(paho.NewClient(opts), cfg.Topic, cfg.QoS, logger)
	if err := s.connect(); err != nil {
		logger.Warnw("mqtt broker unreachable, will retry on publish", "broker", cfg.Server, "error", err)
	}
	return s, nil
}

func newSink(c client, topic string, qos byte, logger logging.Logger) *Sink {
	return &Sink{client: c, topic: topic, qos: qos, logger: logger}
}

func newTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CA != "" {
		pem, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read mqtt ca")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %s", cfg.CA)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.Cert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, errors.Wrap(err, "cannot load mqtt client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func (s *Sink) connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("timed out connecting to mqtt broker")
	}
	return token.Error()
}

// Name returns "mqtt".
func (s *Sink) Name() string {
	return "mqtt"
}

// Send publishes `payload` and waits for the broker to acknowledge it at the configured QoS.
func (s *Sink) Send(ctx context.Context, payload []byte) error {
	if !s.client.IsConnected() {
		if err := s.connect(); err != nil {
			return errors.Wrap(err, "mqtt not connected")
		}
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", s.topic)
	}
	return nil
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	s.client.Disconnect(disconnectQuiet)
	return nil
}

// pahoLogger adapts one level of a Logger to paho's logger interface.
type pahoLogger struct {
	log func(args ...interface{})
}

func (l pahoLogger) Println(v ...interface{}) {
	l.log(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l pahoLogger) Printf(format string, v ...interface{}) {
	l.log(fmt.Sprintf(format, v...))
}

// routeLogs sends paho's own error and warning output through `logger`.
func routeLogs(logger logging.Logger) {
	pahoLog := logger.Sublogger("paho")
	paho.ERROR = pahoLogger{pahoLog.Error}
	paho.CRITICAL = pahoLogger{pahoLog.Error}
	paho.WARN = pahoLogger{pahoLog.Warn}
}
