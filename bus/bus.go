// bus.go
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Any comparable value works;
// in practice topics are built from strings and small integers.
type Token any

// Topic is a sequence of tokens.
type Topic []Token

// T builds a topic from tokens. Tokens must be comparable: they serve as trie
// map keys, so a non-comparable token panics here rather than at publish time.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		_ = tok == tok
	}
	return Topic(tokens)
}

// Append returns a new topic with extra tokens added. The receiver is not
// modified, so derived topics never alias a shared backing array.
func (t Topic) Append(tokens ...Token) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	out = append(out, tokens...)
	return out
}

// At returns the i-th token, or nil when out of range.
func (t Topic) At(i int) Token {
	if i < 0 || i >= len(t) {
		return nil
	}
	return t[i]
}

func (t Topic) Len() int { return len(t) }

// Equal reports tokenwise equality.
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the publisher attached a reply topic.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int

	// Wildcard tokens. single matches exactly one level, multi matches the
	// remainder of the topic (zero or more levels, MQTT-style).
	single Token
	multi  Token

	inboxSeq atomic.Uint32
}

// NewBus creates a bus with the given subscription queue length. Optional
// wildcard tokens override the defaults "+" (single level) and "#" (rest of
// topic).
func NewBus(queueLen int, wildcards ...string) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	b := &Bus{
		root:   &node{},
		qLen:   queueLen,
		single: "+",
		multi:  "#",
	}
	if len(wildcards) > 0 && wildcards[0] != "" {
		b.single = wildcards[0]
	}
	if len(wildcards) > 1 && wildcards[1] != "" {
		b.multi = wildcards[1]
	}
	return b
}

// NewMessage assembles a message without publishing it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription into the trie and delivers any
// retained messages its pattern matches.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	b.deliverRetained(b.root, topic, sub)
}

// deliverRetained walks the trie along a (possibly wildcard) pattern and
// pushes every retained message found at matching nodes.
func (b *Bus) deliverRetained(n *node, pattern Topic, sub *Subscription) {
	if n == nil {
		return
	}
	if len(pattern) == 0 {
		if n.retained != nil {
			deliver(sub, n.retained)
		}
		return
	}
	tok := pattern[0]
	rest := pattern[1:]
	switch tok {
	case b.multi:
		// Matches this node and every descendant.
		b.deliverRetainedAll(n, sub)
	case b.single:
		for _, child := range n.children {
			b.deliverRetained(child, rest, sub)
		}
	default:
		b.deliverRetained(n.children[tok], rest, sub)
	}
}

func (b *Bus) deliverRetainedAll(n *node, sub *Subscription) {
	if n.retained != nil {
		deliver(sub, n.retained)
	}
	for _, child := range n.children {
		b.deliverRetainedAll(child, sub)
	}
}

// Publish delivers a message to every subscription whose pattern matches the
// message topic, then stores or clears the retained copy.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match(b.root, msg.Topic, msg)

	if !msg.Retained {
		return
	}
	// Store (or clear, when payload is nil) at the concrete topic node.
	n := b.root
	for _, tok := range msg.Topic {
		if n.children == nil {
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	if msg.Payload == nil {
		n.retained = nil
	} else {
		n.retained = msg
	}
}

// match walks subscription patterns against a concrete topic.
func (b *Bus) match(n *node, topic Topic, msg *Message) {
	if n == nil {
		return
	}
	// A trailing multi-level wildcard matches the remainder, including the
	// empty remainder ("a/#" receives "a").
	if child, ok := n.children[b.multi]; ok {
		for _, sub := range child.subs {
			deliver(sub, msg)
		}
	}
	if len(topic) == 0 {
		for _, sub := range n.subs {
			deliver(sub, msg)
		}
		return
	}
	tok := topic[0]
	rest := topic[1:]
	if child, ok := n.children[tok]; ok {
		b.match(child, rest, msg)
	}
	if child, ok := n.children[b.single]; ok {
		b.match(child, rest, msg)
	}
}

// deliver pushes a message onto a subscription queue, dropping the oldest
// entry when the queue is full.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[t]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// NewMessage assembles a message without publishing it.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// PublishRetained is shorthand for publishing a retained message.
func (c *Connection) PublishRetained(topic Topic, payload any) {
	c.bus.Publish(&Message{Topic: topic, Payload: payload, Retained: true})
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// ErrNoReply is returned by RequestWait when the context expires first.
var ErrNoReply = errors.New("bus: no reply")

// Reply publishes a payload to the message's reply topic. A message without
// a reply topic is silently ignored; check CanReply when that matters.
func (c *Connection) Reply(m *Message, payload any, retained bool) {
	if !m.CanReply() {
		return
	}
	c.bus.Publish(&Message{Topic: m.ReplyTo, Payload: payload, Retained: retained})
}

// Request attaches a fresh inbox topic to msg, subscribes to it and publishes
// the request. The caller owns the returned subscription and must
// Unsubscribe when done.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = c.inboxTopic()
	sub := c.Subscribe(msg.ReplyTo)
	c.bus.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoReply
	}
}

// inboxTopic mints a unique reply topic for this connection.
func (c *Connection) inboxTopic() Topic {
	seq := c.bus.inboxSeq.Add(1)
	return Topic{"$inbox", c.id, int(seq)}
}
