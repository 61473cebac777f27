// Package bus is a small in-process pub/sub with retained messages and
// MQTT-style wildcards ("+" one level, "#" the rest).
package bus

import (
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

type Topic []string

func T(tokens ...string) Topic { return Topic(tokens) }

func (t Topic) String() string { return strings.Join(t, "/") }

const (
	wildOne  = "+"
	wildRest = "#"
)

// Match reports whether the concrete topic t is selected by filter f.
func Match(f, t Topic) bool {
	for i, tok := range f {
		if tok == wildRest {
			return true
		}
		if i >= len(t) {
			return false
		}
		if tok != wildOne && tok != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// -----------------------------------------------------------------------------
// Message / Subscription
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus with the given per-subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{retained: make(map[string]*Message), qLen: queueLen}
}

func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscriber. A full queue drops its
// oldest message. Retained messages replace the previous retained value for
// the topic; a retained nil payload clears it.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		key := msg.Topic.String()
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	for _, s := range b.subs {
		if Match(s.topic, msg.Topic) {
			deliver(s.ch, msg)
		}
	}
}

func deliver(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

func (b *Bus) subscribe(c *Connection, f Topic) *Subscription {
	s := &Subscription{topic: f, ch: make(chan *Message, b.qLen), conn: c}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	for _, m := range b.retained {
		if Match(f, m.Topic) {
			deliver(s.ch, m)
		}
	}
	b.mu.Unlock()
	return s
}

func (b *Bus) unsubscribe(s *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.subs {
		if x == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(f Topic) *Subscription {
	s := c.bus.subscribe(c, f)
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s
}

func (c *Connection) Unsubscribe(s *Subscription) {
	if !c.bus.unsubscribe(s) {
		return
	}
	c.mu.Lock()
	for i, x := range c.subs {
		if x == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(s.ch)
}

// Disconnect closes all subscriptions of this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		if c.bus.unsubscribe(s) {
			close(s.ch)
		}
	}
}
