// Package models defines field and step type definitions to avoid circular imports.
package models

// Field identifies one answer collected by the quotation flow.
type Field string

// Fields collected by the main sequence.
const (
	FieldClientName      Field = "CLIENT_NAME"
	FieldCapacity        Field = "CAPACITY"
	FieldSanctionedLoad  Field = "SANCTIONED_LOAD"
	FieldSolarPanelModel Field = "SOLAR_PANEL_MODEL"
	FieldSPVModule       Field = "SPV_MODULE"
	FieldInverter        Field = "INVERTER"
	FieldInverterType    Field = "INVERTER_TYPE"
	FieldNoInverter      Field = "NO_INVERTER"
	FieldPhase           Field = "PHASE"
	FieldNoPanels        Field = "NO_PANELS"
	FieldPrice           Field = "PRICE"
)

// Fields collected only for Hybrid inverters.
const (
	FieldBatteryName     Field = "BATTERY_NAME"
	FieldNoBatteries     Field = "NO_BATTERIES"
	FieldBatteryWarranty Field = "BATTERY_WARRANTY"
)

// Derived fields written during merge, never asked.
const (
	FieldPriceInWords Field = "PRICE_IN_WORDS"
	FieldDate         Field = "DATE"
)

// StepKind discriminates what the session is currently waiting for.
type StepKind string

const (
	// StepAwaitingField means the flow is waiting for the answer to Step.Field,
	// either a button press (choice fields) or a typed message.
	StepAwaitingField StepKind = "awaiting_field"
	// StepAwaitingOverride means the user picked "Other" on a choice field and
	// the flow is waiting for free text to store in its place.
	StepAwaitingOverride StepKind = "awaiting_override"
	// StepComplete means every field has been collected. The session sticks
	// around in this state until the generated document is delivered, so a
	// failed merge or delivery can be retried without re-asking questions.
	StepComplete StepKind = "complete"
)

// Step is the session's current position in the flow.
type Step struct {
	Kind  StepKind `json:"kind"`
	Field Field    `json:"field,omitempty"`
}

// AwaitingField builds a Step waiting for a regular answer to f.
func AwaitingField(f Field) Step {
	return Step{Kind: StepAwaitingField, Field: f}
}

// AwaitingOverride builds a Step waiting for free-text override of choice field f.
func AwaitingOverride(f Field) Step {
	return Step{Kind: StepAwaitingOverride, Field: f}
}

// Complete builds the terminal Step.
func Complete() Step {
	return Step{Kind: StepComplete}
}
