// Package models defines the core data structures for QuoteBot.
//
// It includes the flow step results and inbound event shapes shared across
// the engine and transports.
package models

import "errors"

// ResultKind defines what the flow engine asks the transport to do next.
type ResultKind string

const (
	// ResultMenu asks the transport to present a choice menu for a field.
	ResultMenu ResultKind = "menu"
	// ResultPrompt asks the transport to request free text for a field.
	ResultPrompt ResultKind = "prompt"
	// ResultComplete signals that every required field has been collected.
	ResultComplete ResultKind = "complete"
	// ResultRejected signals that the input was refused and the same step
	// must be re-prompted.
	ResultRejected ResultKind = "rejected"
)

// Error variables for better error handling and testability
var (
	ErrNoActiveSession   = errors.New("no active session for conversation")
	ErrInvalidInput      = errors.New("input rejected")
	ErrStaleInteraction  = errors.New("interaction does not match current step")
	ErrVersionConflict   = errors.New("session was modified concurrently")
	ErrTemplateMissing   = errors.New("quotation template not found")
	ErrMergeFailure      = errors.New("template merge failed")
	ErrConversionFailure = errors.New("document conversion failed")
	ErrDeliveryFailure   = errors.New("artifact delivery failed")
)

// StepResult is the engine's instruction to the delivery transport.
type StepResult struct {
	Kind       ResultKind       `json:"kind"`
	Field      Field            `json:"field,omitempty"`
	Label      string           `json:"label,omitempty"`
	Options    []string         `json:"options,omitempty"`
	AllowOther bool             `json:"allow_other,omitempty"`
	Answers    map[Field]string `json:"answers,omitempty"` // set when Kind == ResultComplete
	Reason     string           `json:"reason,omitempty"`  // set when Kind == ResultRejected
}

// ButtonEvent is an inbound button press parsed by the transport.
type ButtonEvent struct {
	ConversationID string
	Field          Field
	// Selection is an index into the field's option list, or -1 for "Other".
	Selection int
}

// OtherSelection marks the free-text escape hatch on a choice menu.
const OtherSelection = -1

// TextEvent is an inbound typed message.
type TextEvent struct {
	ConversationID string
	Text           string
}

// Artifact is one generated quotation document with its download link.
type Artifact struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
