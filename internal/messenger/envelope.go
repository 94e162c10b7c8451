package messenger

import (
	"reflect"
	"strings"
)

// Stamp is one typed metadata entry attached to an Envelope.
type Stamp interface {
	StampName() string
}

// Typed lets a message report its own type identifier instead of the Go type name.
type Typed interface {
	MessageType() string
}

// Envelope wraps a message with its stamps. It is immutable: With and
// Without return new envelopes and never modify the receiver.
type Envelope struct {
	message     any
	messageType string
	stamps      []Stamp
}

func NewEnvelope(message any, stamps ...Stamp) *Envelope {
	return &Envelope{
		message: message,
		stamps:  append([]Stamp(nil), stamps...),
	}
}

func (e *Envelope) Message() any {
	return e.message
}

// MessageType resolves, in order: an explicit type set with WithMessageType,
// the message's own MessageType method, then its Go type name.
func (e *Envelope) MessageType() string {
	if e.messageType != "" {
		return e.messageType
	}
	return TypeOf(e.message)
}

func (e *Envelope) WithMessageType(messageType string) *Envelope {
	clone := e.clone()
	clone.messageType = messageType
	return clone
}

func (e *Envelope) With(stamps ...Stamp) *Envelope {
	if len(stamps) == 0 {
		return e
	}
	clone := e.clone()
	clone.stamps = append(clone.stamps, stamps...)
	return clone
}

// Stamps returns a copy of all stamps in attachment order.
func (e *Envelope) Stamps() []Stamp {
	return append([]Stamp(nil), e.stamps...)
}

func (e *Envelope) clone() *Envelope {
	return &Envelope{
		message:     e.message,
		messageType: e.messageType,
		stamps:      append([]Stamp(nil), e.stamps...),
	}
}

// Last returns the most recently attached stamp of type T.
func Last[T Stamp](e *Envelope) (T, bool) {
	for i := len(e.stamps) - 1; i >= 0; i-- {
		if s, ok := e.stamps[i].(T); ok {
			return s, true
		}
	}
	var zero T
	return zero, false
}

// All returns every stamp of type T in attachment order.
func All[T Stamp](e *Envelope) []T {
	var out []T
	for _, stamp := range e.stamps {
		if s, ok := stamp.(T); ok {
			out = append(out, s)
		}
	}
	return out
}

// Without returns a copy of e with every stamp of type T removed.
func Without[T Stamp](e *Envelope) *Envelope {
	clone := e.clone()
	clone.stamps = clone.stamps[:0]
	for _, stamp := range e.stamps {
		if _, ok := stamp.(T); !ok {
			clone.stamps = append(clone.stamps, stamp)
		}
	}
	return clone
}

// TypeOf returns the type identifier of a message value.
func TypeOf(message any) string {
	if message == nil {
		return "nil"
	}
	if typed, ok := message.(Typed); ok {
		if t := typed.MessageType(); t != "" {
			return t
		}
	}
	t := reflect.TypeOf(message)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ShortName strips any package or namespace qualifier from a type identifier.
func ShortName(messageType string) string {
	if i := strings.LastIndexAny(messageType, `./\`); i >= 0 && i < len(messageType)-1 {
		return messageType[i+1:]
	}
	return messageType
}
