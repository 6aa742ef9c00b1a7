package ingest

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bunchim/archer/internal/events"
)

// EventToStruct encodes an event as a Struct message.
func EventToStruct(ev events.Event) (*structpb.Struct, error) {
	return toStruct(ev)
}

// EventFromStruct decodes and validates an event carried in a Struct.
func EventFromStruct(s *structpb.Struct) (events.Event, error) {
	var ev events.Event
	if s == nil {
		return ev, fmt.Errorf("%w: empty message", events.ErrInvalidEvent)
	}
	if err := fromStruct(s, &ev); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", events.ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}

// toStruct converts any JSON-encodable value whose JSON form is an object.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
