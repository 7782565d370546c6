package mqtt

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a paho token that completes when done is closed.
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

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient is a paho client driven by the test. Broker events are fired
// through the callbacks the manager installed on the options.
type fakeClient struct {
	opts *pahomqtt.ClientOptions

	mu           sync.Mutex
	connectErr   error
	subscribeErr error
	publishErr   error
	open         bool
	connects     int
	subscribes   []string
	routes       map[string]pahomqtt.MessageHandler
	published    []publishCall
	disconnects  int
}

func newFakeClient(opts *pahomqtt.ClientOptions) *fakeClient {
	return &fakeClient{opts: opts, routes: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool      { return c.IsConnectionOpen() }
func (c *fakeClient) IsConnectionOpen() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.open }

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return completedToken(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.open = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return completedToken(c.publishErr)
	}
	var body string
	switch p := payload.(type) {
	case []byte:
		body = string(p)
	case string:
		body = p
	}
	c.published = append(c.published, publishCall{topic, qos, retained, body})
	return completedToken(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes = append(c.subscribes, topic)
	if c.subscribeErr != nil {
		return completedToken(c.subscribeErr)
	}
	c.routes[topic] = callback
	return completedToken(nil)
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return completedToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.routes, t)
	}
	return completedToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[topic] = callback
}

func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (c *fakeClient) setPublishErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// fireConnect simulates a successful (re)connect.
func (c *fakeClient) fireConnect() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.opts.OnConnect(c)
}

// fireConnectionLost simulates the broker dropping the session.
func (c *fakeClient) fireConnectionLost(err error) {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	c.opts.OnConnectionLost(c, err)
}

// fireReconnecting simulates paho starting a reconnect attempt.
func (c *fakeClient) fireReconnecting() {
	c.opts.OnReconnecting(c, c.opts)
}

// deliver sends a message through the route registered for topic. It reports
// false when no route exists.
func (c *fakeClient) deliver(topic string, payload string) bool {
	c.mu.Lock()
	handler, ok := c.routes[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	handler(c, fakeMessage{topic: topic, payload: []byte(payload)})
	return true
}

func (c *fakeClient) subscribeCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribes...)
}

func (c *fakeClient) publishes() []publishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishCall(nil), c.published...)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// clientRecorder is a ClientFactory that keeps every client it creates.
type clientRecorder struct {
	mu      sync.Mutex
	clients []*fakeClient
	// prepare, when set, configures each client before use.
	prepare func(c *fakeClient)
	// onCreate, when set, runs as each client is created, just before Connect.
	onCreate func()
}

func (r *clientRecorder) factory(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	c := newFakeClient(opts)
	if r.prepare != nil {
		r.prepare(c)
	}
	if r.onCreate != nil {
		r.onCreate()
	}
	r.mu.Lock()
	r.clients = append(r.clients, c)
	r.mu.Unlock()
	return c
}

func (r *clientRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *clientRecorder) last() *fakeClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		return nil
	}
	return r.clients[len(r.clients)-1]
}
