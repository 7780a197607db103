package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrNotBatch     = errors.New("message is not a JSON array of events")
	ErrMissingKind  = errors.New("event has no 'event' field")
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrMissingField = errors.New("event is missing a required field")
)

// DecodeError describes one batch element that could not be decoded.
type DecodeError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("event #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("event #%d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeBatch parses a message into its events, preserving array order.
// Elements that cannot be decoded are reported in skipped and left out of
// events; err is only set when the message as a whole is unusable.
func DecodeBatch(raw []byte) (events []Event, skipped []*DecodeError, err error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("%w: invalid JSON", ErrNotBatch)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, nil, ErrNotBatch
	}

	index := 0
	root.ForEach(func(_, value gjson.Result) bool {
		ev, decErr := decodeOne(value)
		if decErr != nil {
			decErr.Index = index
			skipped = append(skipped, decErr)
		} else {
			events = append(events, ev)
		}
		index++
		return true
	})
	return events, skipped, nil
}

// Decode parses a single event object.
func Decode(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &DecodeError{Err: errors.New("invalid JSON")}
	}
	ev, err := decodeOne(gjson.ParseBytes(raw))
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeOne(value gjson.Result) (Event, *DecodeError) {
	if !value.IsObject() {
		return nil, &DecodeError{Err: errors.New("element is not an object")}
	}
	kindResult := value.Get("event")
	if !kindResult.Exists() || kindResult.String() == "" {
		return nil, &DecodeError{Err: ErrMissingKind}
	}
	kind := Kind(kindResult.String())
	factory, ok := factories[kind]
	if !ok {
		return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
	}
	for _, path := range required[kind] {
		if !value.Get(path).Exists() {
			return nil, &DecodeError{Kind: kind, Err: fmt.Errorf("%w '%s'", ErrMissingField, path)}
		}
	}

	ev := factory()
	if err := json.Unmarshal([]byte(value.Raw), ev); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	ev.header().Event = kind
	return ev, nil
}

// Stamp sets the kind token and, when unset, the sender time of ev.
func Stamp(ev Event, now time.Time) {
	h := ev.header()
	h.Event = ev.Kind()
	if h.Time == 0 {
		h.Time = now.UnixMilli()
	}
}

// EncodeBatch serializes events as one JSON array, stamping each with now.
func EncodeBatch(events []Event, now time.Time) ([]byte, error) {
	for _, ev := range events {
		Stamp(ev, now)
	}
	if events == nil {
		events = []Event{}
	}
	b, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return b, nil
}
