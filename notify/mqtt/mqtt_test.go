package mqtt

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} {
	return t.done
}

func (t *fakeToken) Error() error {
	return t.err
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	connects    int
	publishErr  error
	pending     *fakeToken
	published   []published
	disconnects int
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr == nil {
		c.connected = true
	}
	return completedToken(c.connectErr)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	if c.pending != nil {
		return c.pending
	}
	return completedToken(c.publishErr)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
}

func TestSendPublishes(t *testing.T) {
	c := &fakeClient{connected: true}
	s := newSink(c, "close-call-reporter", 1, logging.NewTestLogger(t))
	test.That(t, s.Name(), test.ShouldEqual, "mqtt")

	payload := []byte(`{"message":"object-detected 2015-06-01T19:30:45Z","location":"No GPS Data"}`)
	test.That(t, s.Send(context.Background(), payload), test.ShouldBeNil)
	test.That(t, c.published, test.ShouldHaveLength, 1)
	test.That(t, c.published[0].topic, test.ShouldEqual, "close-call-reporter")
	test.That(t, c.published[0].qos, test.ShouldEqual, byte(1))
	test.That(t, c.published[0].payload, test.ShouldResemble, payload)
	test.That(t, c.connects, test.ShouldEqual, 0)

	test.That(t, s.Close(), test.ShouldBeNil)
	test.That(t, c.disconnects, test.ShouldEqual, 1)
}

func TestSendReconnects(t *testing.T) {
	c := &fakeClient{}
	s := newSink(c, "t", 0, logging.NewTestLogger(t))
	test.That(t, s.Send(context.Background(), []byte("x")), test.ShouldBeNil)
	test.That(t, c.connects, test.ShouldEqual, 1)

	down := &fakeClient{connectErr: errors.New("connection refused")}
	s = newSink(down, "t", 0, logging.NewTestLogger(t))
	err := s.Send(context.Background(), []byte("x"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "connection refused")
	test.That(t, down.published, test.ShouldHaveLength, 0)
}

func TestSendPublishError(t *testing.T) {
	c := &fakeClient{connected: true, publishErr: errors.New("not authorized")}
	s := newSink(c, "t", 1, logging.NewTestLogger(t))
	err := s.Send(context.Background(), []byte("x"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to publish to t")
}

func TestSendHonorsContext(t *testing.T) {
	c := &fakeClient{connected: true, pending: &fakeToken{done: make(chan struct{})}}
	s := newSink(c, "t", 2, logging.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, s.Send(ctx, []byte("x")), test.ShouldBeError, context.Canceled)
}

func TestNewTLSConfig(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "ca.pem")
	test.That(t, os.WriteFile(bad, []byte("not a certificate"), 0o600), test.ShouldBeNil)

	_, err := newTLSConfig(config.MQTTConfig{CA: bad})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no certificates found")

	_, err = newTLSConfig(config.MQTTConfig{CA: filepath.Join(dir, "missing.pem")})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(config.MQTTConfig{Server: "ssl://localhost:8883", Cert: bad, Key: bad}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "client certificate")

	tlsConfig, err := newTLSConfig(config.MQTTConfig{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tlsConfig.RootCAs, test.ShouldBeNil)
}

func TestPahoLogsRouted(t *testing.T) {
	prevError, prevCritical, prevWarn := paho.ERROR, paho.CRITICAL, paho.WARN
	t.Cleanup(func() {
		paho.ERROR, paho.CRITICAL, paho.WARN = prevError, prevCritical, prevWarn
	})

	logger, observed := logging.NewObservedTestLogger(t)
	routeLogs(logger)
	paho.ERROR.Println("[client]", "dial failed")
	paho.WARN.Printf("retrying in %d", 5)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].Message, test.ShouldEqual, "[client] dial failed")
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "paho")
	test.That(t, entries[1].Message, test.ShouldEqual, "retrying in 5")
}
