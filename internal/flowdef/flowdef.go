// Package flowdef holds the static definition of the quotation flow: the
// ordered field sequences, the Hybrid-only branch, and the choice menus.
//
// The definition is built once at startup and shared read-only; nothing
// mutates it at runtime.
package flowdef

import (
	"fmt"
	"strings"

	"github.com/brightvolt/quotebot/internal/models"
)

// Definition is the immutable flow configuration consumed by the engine.
type Definition struct {
	// MainSequence lists the fields every flow must collect, in order.
	MainSequence []models.Field
	// BranchSequence lists the fields appended after MainSequence when the
	// answer to BranchField equals BranchTrigger.
	BranchSequence []models.Field
	BranchField    models.Field
	BranchTrigger  string
	// Choices maps menu-presented fields to their ordered option labels.
	// Fields absent from the map are free text.
	Choices map[models.Field][]string
}

// Default returns the solar quotation flow definition.
func Default() *Definition {
	return &Definition{
		MainSequence: []models.Field{
			models.FieldClientName,
			models.FieldCapacity,
			models.FieldSanctionedLoad,
			models.FieldSolarPanelModel,
			models.FieldSPVModule,
			models.FieldInverter,
			models.FieldInverterType,
			models.FieldNoInverter,
			models.FieldPhase,
			models.FieldNoPanels,
			models.FieldPrice,
		},
		BranchSequence: []models.Field{
			models.FieldBatteryName,
			models.FieldNoBatteries,
			models.FieldBatteryWarranty,
		},
		BranchField:   models.FieldInverterType,
		BranchTrigger: "Hybrid",
		Choices: map[models.Field][]string{
			models.FieldCapacity: {"3 KW", "5 KW", "6 KW", "10 KW"},
			models.FieldSolarPanelModel: {
				"UTL 580 Watt TOPCon Bifacial",
				"575 Watt TOPCon DCR Bi-Facial Dual Glass",
				"590 Watt N-Type TOPCon Solar Module",
			},
			models.FieldSPVModule: {
				"Mono Half Cut",
				"Mono",
				"TOPCon Bi-Facial",
				"Mono PERC",
				"TOPCon DCR Solar",
			},
			models.FieldInverterType: {"On-Grid", "Hybrid"},
			models.FieldPhase:        {"Single Phase", "Three Phase"},
		},
	}
}

// Validate checks the structural invariants of the definition: non-empty main
// sequence, globally unique field names, the branch trigger field present in
// the main sequence, and every choice field part of some sequence.
func (d *Definition) Validate() error {
	if len(d.MainSequence) == 0 {
		return fmt.Errorf("main sequence is empty")
	}
	seen := make(map[models.Field]bool, len(d.MainSequence)+len(d.BranchSequence))
	for _, f := range append(append([]models.Field{}, d.MainSequence...), d.BranchSequence...) {
		if seen[f] {
			return fmt.Errorf("duplicate field %s in flow definition", f)
		}
		seen[f] = true
	}
	if len(d.BranchSequence) > 0 {
		inMain := false
		for _, f := range d.MainSequence {
			if f == d.BranchField {
				inMain = true
				break
			}
		}
		if !inMain {
			return fmt.Errorf("branch field %s is not in the main sequence", d.BranchField)
		}
	}
	for f := range d.Choices {
		if !seen[f] {
			return fmt.Errorf("choice field %s is not part of any sequence", f)
		}
		if len(d.Choices[f]) == 0 {
			return fmt.Errorf("choice field %s has no options", f)
		}
	}
	return nil
}

// First returns the first field of the main sequence.
func (d *Definition) First() models.Field {
	return d.MainSequence[0]
}

// IsChoice reports whether f is presented as a menu.
func (d *Definition) IsChoice(f models.Field) bool {
	_, ok := d.Choices[f]
	return ok
}

// Option returns the option label at index i for choice field f.
func (d *Definition) Option(f models.Field, i int) (string, error) {
	opts, ok := d.Choices[f]
	if !ok {
		return "", fmt.Errorf("field %s is not a choice field", f)
	}
	if i < 0 || i >= len(opts) {
		return "", fmt.Errorf("option index %d out of range for field %s", i, f)
	}
	return opts[i], nil
}

// Label renders a human prompt label for a field name, e.g.
// CLIENT_NAME -> "Client Name".
func Label(f models.Field) string {
	words := strings.Split(strings.ToLower(string(f)), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
