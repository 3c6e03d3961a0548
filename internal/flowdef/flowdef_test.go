package flowdef

import (
	"testing"

	"github.com/brightvolt/quotebot/internal/models"
)

func TestDefaultDefinitionValid(t *testing.T) {
	def := Default()
	if err := def.Validate(); err != nil {
		t.Fatalf("default definition invalid: %v", err)
	}
	if def.First() != models.FieldClientName {
		t.Errorf("first field = %s, want %s", def.First(), models.FieldClientName)
	}
	if !def.IsChoice(models.FieldInverterType) {
		t.Error("INVERTER_TYPE should be a choice field")
	}
	if def.IsChoice(models.FieldClientName) {
		t.Error("CLIENT_NAME should be free text")
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	def := Default()
	def.BranchSequence = append(def.BranchSequence, models.FieldClientName)
	if err := def.Validate(); err == nil {
		t.Error("expected duplicate field error")
	}
}

func TestValidateRejectsBranchFieldOutsideMain(t *testing.T) {
	def := Default()
	def.BranchField = models.FieldBatteryName
	if err := def.Validate(); err == nil {
		t.Error("expected branch field error")
	}
}

func TestValidateRejectsUnknownChoiceField(t *testing.T) {
	def := Default()
	def.Choices["NOT_A_FIELD"] = []string{"x"}
	if err := def.Validate(); err == nil {
		t.Error("expected unknown choice field error")
	}
}

func TestOption(t *testing.T) {
	def := Default()
	opt, err := def.Option(models.FieldInverterType, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt != "Hybrid" {
		t.Errorf("option = %q, want %q", opt, "Hybrid")
	}
	if _, err := def.Option(models.FieldInverterType, 5); err == nil {
		t.Error("expected out-of-range error")
	}
	if _, err := def.Option(models.FieldClientName, 0); err == nil {
		t.Error("expected non-choice field error")
	}
}

func TestLabel(t *testing.T) {
	if got := Label(models.FieldClientName); got != "Client Name" {
		t.Errorf("Label = %q, want %q", got, "Client Name")
	}
	if got := Label(models.FieldSPVModule); got != "Spv Module" {
		t.Errorf("Label = %q, want %q", got, "Spv Module")
	}
}
