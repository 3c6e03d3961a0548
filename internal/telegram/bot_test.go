package telegram

import (
	"testing"

	"github.com/brightvolt/quotebot/internal/models"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		data      string
		field     models.Field
		selection int
		ok        bool
	}{
		{"INVERTER_TYPE__0", models.FieldInverterType, 0, true},
		{"INVERTER_TYPE__1", models.FieldInverterType, 1, true},
		{"CAPACITY__OTHER", models.FieldCapacity, models.OtherSelection, true},
		{"SPV_MODULE__4", models.FieldSPVModule, 4, true},
		{"CAPACITY__", "", 0, false},
		{"__3", "", 0, false},
		{"CAPACITY", "", 0, false},
		{"CAPACITY__abc", "", 0, false},
		{"CAPACITY__-2", "", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range cases {
		field, selection, ok := parseCallbackData(tc.data)
		if ok != tc.ok {
			t.Errorf("parseCallbackData(%q) ok = %v, want %v", tc.data, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if field != tc.field || selection != tc.selection {
			t.Errorf("parseCallbackData(%q) = (%s, %d), want (%s, %d)",
				tc.data, field, selection, tc.field, tc.selection)
		}
	}
}

func TestMenuMarkupLayout(t *testing.T) {
	res := models.StepResult{
		Kind:       models.ResultMenu,
		Field:      models.FieldCapacity,
		Label:      "Capacity",
		Options:    []string{"3 KW", "5 KW", "6 KW", "10 KW", "12 KW"},
		AllowOther: true,
	}
	markup := menuMarkup(res)

	rows := markup.InlineKeyboard
	// Five options at two per row, plus the Other row.
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if len(rows[0]) != 2 || len(rows[1]) != 2 || len(rows[2]) != 1 {
		t.Errorf("row sizes = %d/%d/%d, want 2/2/1", len(rows[0]), len(rows[1]), len(rows[2]))
	}

	if rows[0][0].Text != "3 KW" || rows[0][0].Data != "CAPACITY__0" {
		t.Errorf("first button = %+v", rows[0][0])
	}
	if rows[2][0].Data != "CAPACITY__4" {
		t.Errorf("last option button data = %q, want CAPACITY__4", rows[2][0].Data)
	}

	other := rows[3]
	if len(other) != 1 || other[0].Text != "Other" || other[0].Data != "CAPACITY__OTHER" {
		t.Errorf("other row = %+v", other)
	}

	// Every button's data must survive the round trip through the parser.
	for _, row := range rows {
		for _, btn := range row {
			if _, _, ok := parseCallbackData(btn.Data); !ok {
				t.Errorf("button data %q does not parse", btn.Data)
			}
		}
	}
}

func TestMenuMarkupWithoutOther(t *testing.T) {
	res := models.StepResult{
		Kind:    models.ResultMenu,
		Field:   models.FieldPhase,
		Label:   "Phase",
		Options: []string{"Single Phase", "Three Phase"},
	}
	rows := menuMarkup(res).InlineKeyboard
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	for _, btn := range rows[0] {
		if btn.Data == "PHASE__OTHER" {
			t.Error("menu without AllowOther must not have an Other button")
		}
	}
}
