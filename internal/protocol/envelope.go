package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrMalformedFrame = errors.New("malformed frame")
var ErrMissingType = errors.New("frame has no type tag")

// Envelope is the normalized form of every inbound frame. Whatever
// shape the server sent, downstream code reads one flat key/value map.
type Envelope struct {
	Type      string
	Data      map[string]any
	Timestamp time.Time
}

// Command is the outgoing wire shape: {command: UPPERCASE, data: {...}}.
type Command struct {
	Command string         `json:"command"`
	Data    map[string]any `json:"data"`
}

// Normalize collapses the two inbound wire shapes into an Envelope.
//
// Command responses look like {type, success, message?, data?} and
// domain events like {eventType, eventId, timestamp, data}. Top-level
// fields and the nested data object are merged into one flat map, the
// nested object winning on key collision, and the type tag is
// uppercased. The legacy DEALT_CARDS tag becomes CARDS_DEALT here so
// no projection has to know about the alias.
func Normalize(raw []byte) (Envelope, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Envelope{}, ErrMalformedFrame
	}

	typ, _ := m["type"].(string)
	if typ == "" {
		typ, _ = m["eventType"].(string)
	}
	if typ == "" {
		return Envelope{}, ErrMissingType
	}

	data := make(map[string]any, len(m))
	for k, v := range m {
		if k == "type" || k == "eventType" {
			continue
		}
		data[k] = v
	}
	// Only flatten when the payload is an object; a scalar data field
	// stays where it is.
	if nested, ok := m["data"].(map[string]any); ok {
		delete(data, "data")
		for k, v := range nested {
			data[k] = v
		}
	}

	typ = strings.ToUpper(typ)
	if typ == eventDealtCards {
		typ = EventCardsDealt
	}

	return Envelope{Type: typ, Data: data, Timestamp: parseTimestamp(m["timestamp"])}, nil
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		// Millisecond epochs are what the server's Date.now-era builds
		// send; older ones sent seconds.
		if t > 1e12 {
			return time.UnixMilli(int64(t))
		}
		return time.Unix(int64(t), 0)
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Now()
}

// String returns the string at key, or "" when absent or not a string.
func (e Envelope) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// FirstString returns the first non-empty string among keys. Several
// events spell the same field differently across server builds
// (playerId vs id, playerName vs name).
func (e Envelope) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := e.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the number at key truncated to int, or 0. JSON numbers
// arrive as float64.
func (e Envelope) Int(key string) int {
	switch n := e.Data[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// FirstInt returns the first present numeric field among keys.
func (e Envelope) FirstInt(keys ...string) (int, bool) {
	for _, k := range keys {
		if _, ok := e.Data[k]; ok {
			return e.Int(k), true
		}
	}
	return 0, false
}

func (e Envelope) Bool(key string) bool {
	b, _ := e.Data[key].(bool)
	return b
}

func (e Envelope) Has(key string) bool {
	_, ok := e.Data[key]
	return ok
}

// Strings returns the value at key as a string slice.
func (e Envelope) Strings(key string) []string {
	raw, ok := e.Data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Objects returns the value at key as a slice of flat maps, for list
// payloads like LOBBY_CREATED's players.
func (e Envelope) Objects(key string) []map[string]any {
	raw, ok := e.Data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Field helpers for the nested objects returned by Objects.

func ObjString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func ObjInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}
