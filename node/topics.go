package node

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type subscription struct {
	id int
	fn func(any)
}

type topic struct {
	mu       sync.Mutex
	msgType  reflect.Type
	nextID   int
	subs     []subscription
	received int
}

// topicFor returns the topic with the given name, creating it for msgType if needed. A topic keeps
// the message type it was first used with.
func (n *Node) topicFor(name string, msgType reflect.Type) (*topic, error) {
	n.topicMu.Lock()
	defer n.topicMu.Unlock()
	t, ok := n.topics[name]
	if !ok {
		t = &topic{msgType: msgType}
		n.topics[name] = t
	}
	if t.msgType != msgType {
		return nil, errors.Errorf("topic %q carries %v, not %v", name, t.msgType, msgType)
	}
	return t, nil
}

// Publish delivers msg to every subscriber of the topic, in subscription order, on the calling
// goroutine.
func Publish[T any](n *Node, topicName string, msg T) error {
	t, err := n.topicFor(topicName, reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	t.mu.Lock()
	subs := append([]subscription{}, t.subs...)
	t.received++
	t.mu.Unlock()
	for _, s := range subs {
		s.fn(msg)
	}
	return nil
}

// Subscribe registers fn for messages on the topic and returns a function that unsubscribes it.
// fn runs on the publisher's goroutine and must not block.
func Subscribe[T any](n *Node, topicName string, fn func(T)) (func(), error) {
	t, err := n.topicFor(topicName, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs = append(t.subs, subscription{id: id, fn: func(msg any) { fn(msg.(T)) }})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				return
			}
		}
	}, nil
}

// TopicStats describes a topic for diagnostics.
type TopicStats struct {
	Name        string
	Type        string
	Subscribers int
	Published   int
}

// Topics returns every topic that has been published or subscribed to.
func (n *Node) Topics() []TopicStats {
	n.topicMu.RLock()
	defer n.topicMu.RUnlock()
	stats := make([]TopicStats, 0, len(n.topics))
	for name, t := range n.topics {
		t.mu.Lock()
		stats = append(stats, TopicStats{Name: name, Type: t.msgType.String(), Subscribers: len(t.subs), Published: t.received})
		t.mu.Unlock()
	}
	slices.SortFunc(stats, func(a, b TopicStats) int { return strings.Compare(a.Name, b.Name) })
	return stats
}
