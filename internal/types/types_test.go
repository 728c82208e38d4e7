package types

import "testing"

func TestDueDateFor(t *testing.T) {
	tests := []struct {
		name  string
		issue string
		want  string
	}{
		{"within month", "2025-03-10", "2025-03-17"},
		{"across month", "2025-01-28", "2025-02-04"},
		{"leap february", "2024-02-25", "2024-03-03"},
		{"non-leap february", "2025-02-25", "2025-03-04"},
		{"across year", "2024-12-29", "2025-01-05"},
		{"unpadded month and day", "2025-1-5", "2025-01-12"},
		{"unpadded across month", "2025-1-28", "2025-02-04"},
		{"unparseable", "10.03.2025", ""},
		{"invalid day", "2025-02-30", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DueDateFor(tt.issue); got != tt.want {
				t.Errorf("DueDateFor(%q) = %q, want %q", tt.issue, got, tt.want)
			}
		})
	}
}

func TestSanitizeID(t *testing.T) {
	if got := SanitizeID("FV/2025/001"); got != "FV_2025_001" {
		t.Errorf("SanitizeID = %q, want FV_2025_001", got)
	}
	if got := SanitizeID("FV-2025-001"); got != "FV-2025-001" {
		t.Errorf("SanitizeID changed an identifier without slashes: %q", got)
	}
	// Only "/" is replaced; other hazardous characters pass through.
	if got := SanitizeID(`A\B:C`); got != `A\B:C` {
		t.Errorf("SanitizeID = %q, want unchanged", got)
	}
}

func TestNewLineItemDerivesVAT(t *testing.T) {
	li := NewLineItem("Usługa", "1", "szt.", "100.00", "123.00")
	if li.VAT != "23.00" {
		t.Errorf("VAT = %q, want 23.00", li.VAT)
	}

	bad := NewLineItem("Usługa", "1", "szt.", "100.00", "")
	if bad.VAT != "" {
		t.Errorf("VAT = %q, want empty for unparseable gross", bad.VAT)
	}
	if bad.Description != "Usługa" || bad.Net != "100.00" {
		t.Errorf("line item fields not preserved: %+v", bad)
	}
}
