// Package envelope implements the wire format exchanged between agents:
// a self-describing record carrying routing metadata and a typed payload
// discriminator recognising Normal, UpstreamFailure, and
// UpstreamRejection payloads.
package envelope

import (
	"encoding/json"
	"fmt"
)

// PayloadType discriminates the shape of an Envelope's payload.
type PayloadType string

const (
	// Normal carries an ordinary domain payload produced by the upstream
	// agent's own encoder.
	Normal PayloadType = "Normal"
	// UpstreamFailure carries {from_agent, error} describing an
	// unrecoverable failure in the upstream agent's pipeline.
	UpstreamFailure PayloadType = "UpstreamFailure"
	// UpstreamRejection carries {from_agent, guardrail_name, reason}
	// describing a guardrail block in the upstream agent's pipeline.
	UpstreamRejection PayloadType = "UpstreamRejection"
)

// Envelope is the UTF-8 wire record exchanged between agents. Field names
// are part of the ABI (§6.1) — they use underscore spelling via the json
// tags below regardless of Go naming convention.
type Envelope struct {
	FromAgent      string          `json:"from_agent"`
	ToAgent        string          `json:"to_agent"`
	TraceID        string          `json:"trace_id"`
	ConversationID string          `json:"conversation_id"`
	PayloadType    PayloadType     `json:"payload_type"`
	Payload        json.RawMessage `json:"payload"`
}

// UpstreamFailurePayload is the structured payload of an envelope whose
// PayloadType is UpstreamFailure.
type UpstreamFailurePayload struct {
	FromAgent string `json:"from_agent"`
	Error     string `json:"error"`
}

// UpstreamRejectionPayload is the structured payload of an envelope whose
// PayloadType is UpstreamRejection.
type UpstreamRejectionPayload struct {
	FromAgent     string `json:"from_agent"`
	GuardrailName string `json:"guardrail_name"`
	Reason        string `json:"reason"`
}

// DecodeError is returned by Decode when the wire bytes cannot be parsed
// into a well-formed Envelope, or a required field is empty.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "envelope: decode failed: " + e.Reason
}

// Encode produces the canonical textual form of env: UTF-8 JSON with the
// exact field set in §6.1.
func Encode(env Envelope) ([]byte, error) {
	if env.FromAgent == "" || env.ToAgent == "" || env.TraceID == "" || env.ConversationID == "" {
		return nil, fmt.Errorf("envelope: encode: from_agent, to_agent, trace_id and conversation_id are required")
	}
	return json.Marshal(env)
}

// Decode recovers an Envelope from wire bytes, or returns a *DecodeError
// with a human-readable reason. Unknown keys are tolerated and dropped —
// json.Unmarshal's default behavior — satisfying §6.1's "any other keys
// must be tolerated on decode".
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: err.Error()}
	}
	if env.FromAgent == "" {
		return Envelope{}, &DecodeError{Reason: "missing from_agent"}
	}
	if env.ToAgent == "" {
		return Envelope{}, &DecodeError{Reason: "missing to_agent"}
	}
	if env.TraceID == "" {
		return Envelope{}, &DecodeError{Reason: "missing trace_id"}
	}
	if env.ConversationID == "" {
		return Envelope{}, &DecodeError{Reason: "missing conversation_id"}
	}
	switch env.PayloadType {
	case Normal, UpstreamFailure, UpstreamRejection:
	default:
		return Envelope{}, &DecodeError{Reason: "unrecognised payload_type: " + string(env.PayloadType)}
	}
	return env, nil
}

// FallbackLogger is invoked exactly once per occurrence of a structured
// payload encode failure, when EncodePayload falls back to a string-typed
// payload. It is passed explicitly rather than held in package state so
// callers control exactly where the log line goes.
type FallbackLogger func(reason string)

// EncodePayload marshals value as the envelope payload. If value cannot be
// marshaled as structured JSON, EncodePayload falls back to a JSON string
// containing value's fmt.Sprintf("%v", ...) representation and invokes
// onFallback once with the reason.
func EncodePayload(value any, onFallback FallbackLogger) (json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err == nil {
		return raw, nil
	}
	if onFallback != nil {
		onFallback(fmt.Sprintf("structured payload encode failed (%v); falling back to string payload", err))
	}
	fallback, ferr := json.Marshal(fmt.Sprintf("%v", value))
	if ferr != nil {
		return nil, fmt.Errorf("envelope: string fallback encode failed: %w", ferr)
	}
	return fallback, nil
}

// DecodeUpstreamFailure parses env.Payload as an UpstreamFailurePayload.
// Callers should only invoke this when env.PayloadType == UpstreamFailure.
func DecodeUpstreamFailure(env Envelope) (UpstreamFailurePayload, error) {
	var p UpstreamFailurePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return UpstreamFailurePayload{}, fmt.Errorf("envelope: decode upstream failure payload: %w", err)
	}
	return p, nil
}

// DecodeUpstreamRejection parses env.Payload as an UpstreamRejectionPayload.
// Callers should only invoke this when env.PayloadType == UpstreamRejection.
func DecodeUpstreamRejection(env Envelope) (UpstreamRejectionPayload, error) {
	var p UpstreamRejectionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return UpstreamRejectionPayload{}, fmt.Errorf("envelope: decode upstream rejection payload: %w", err)
	}
	return p, nil
}

// NewNormalEnvelope builds an outbound envelope carrying a Normal payload,
// copying traceID and conversationID verbatim from the inbound message per
// the runtime's propagation invariant.
func NewNormalEnvelope(fromAgent, toAgent, traceID, conversationID string, payload json.RawMessage) Envelope {
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    Normal,
		Payload:        payload,
	}
}

// NewUpstreamFailureEnvelope builds an outbound envelope reporting that
// fromAgent's pipeline failed with err.
func NewUpstreamFailureEnvelope(fromAgent, toAgent, traceID, conversationID, errMsg string) (Envelope, error) {
	payload, err := json.Marshal(UpstreamFailurePayload{FromAgent: fromAgent, Error: errMsg})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    UpstreamFailure,
		Payload:        payload,
	}, nil
}

// NewUpstreamRejectionEnvelope builds an outbound envelope reporting that
// fromAgent's pipeline was blocked by a guardrail.
func NewUpstreamRejectionEnvelope(fromAgent, toAgent, traceID, conversationID, guardrailName, reason string) (Envelope, error) {
	payload, err := json.Marshal(UpstreamRejectionPayload{FromAgent: fromAgent, GuardrailName: guardrailName, Reason: reason})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    UpstreamRejection,
		Payload:        payload,
	}, nil
}
