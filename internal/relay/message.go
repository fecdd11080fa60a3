package relay

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Event names on the media stream.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
)

// Message is one media-stream event in either direction. Fields that do not
// apply to an event are left empty.
type Message struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
}

// StartPayload carries the stream metadata some carriers nest under "start".
type StartPayload struct {
	StreamSID string `json:"streamSid,omitempty"`
}

// MediaPayload carries base64 s16le PCM.
type MediaPayload struct {
	Payload string `json:"payload"`
}

// SID returns the stream id from the top level or the start block.
func (m Message) SID() string {
	if m.StreamSID != "" {
		return m.StreamSID
	}
	if m.Start != nil {
		return m.Start.StreamSID
	}
	return ""
}

//go:embed schema.json
var inboundSchema []byte

const inboundSchemaURL = "https://voicebridge.local/schemas/inbound-event.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(inboundSchemaURL, bytes.NewReader(inboundSchema)); err != nil {
			schemaErr = fmt.Errorf("add inbound schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(inboundSchemaURL)
	})
	return schema, schemaErr
}

// Decode parses and validates an inbound event. Events with unknown names
// pass validation and are returned for the caller to ignore.
func Decode(raw []byte) (Message, error) {
	var msg Message

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return msg, malformed(ReasonInvalidJSON, err)
	}

	s, err := compiledSchema()
	if err != nil {
		return msg, err
	}
	if err := s.Validate(doc); err != nil {
		return msg, malformed(ReasonSchema, err)
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, malformed(ReasonInvalidJSON, err)
	}
	return msg, nil
}

// Audio decodes a media event's payload. It must be non-empty and hold a
// whole number of 16-bit samples.
func (m Message) Audio() ([]byte, error) {
	if m.Media == nil || m.Media.Payload == "" {
		return nil, malformed(ReasonPayload, errors.New("empty payload"))
	}
	pcm, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, malformed(ReasonPayload, err)
	}
	if len(pcm) == 0 {
		return nil, malformed(ReasonPayload, errors.New("empty payload"))
	}
	if len(pcm)%2 != 0 {
		return nil, malformed(ReasonPayload, fmt.Errorf("odd payload length %d", len(pcm)))
	}
	return pcm, nil
}

// EncodeMedia builds an outbound media event for pcm.
func EncodeMedia(streamSID string, pcm []byte) ([]byte, error) {
	return json.Marshal(Message{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(pcm)},
	})
}
