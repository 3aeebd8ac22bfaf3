package conv

import "testing"

func TestParseLocalizedFloat(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"plain integer", "280", 280, true},
		{"plain decimal", "28.5", 28.5, true},
		{"leading/trailing space", " 12.3 ", 12.3, true},
		{"fullwidth digits", "２８０", 280, true},
		{"fullwidth decimal", "１２．５", 12.5, true},
		{"thousands comma", "1,234", 1234, true},
		{"fullwidth comma", "１，２００", 1200, true},
		{"unit suffix g", "15g", 15, true},
		{"unit suffix kcal", "450kcal", 450, true},
		{"negative", "-3.5", -3.5, true},
		{"empty", "", 0, false},
		{"dash placeholder", "－", 0, false},
		{"non numeric", "たっぷり", 0, false},
		{"circle marker", "◯", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLocalizedFloat(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseLocalizedFloat(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseLocalizedFloat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float64", 1.5, 1.5, true},
		{"int", 3, 3.0, true},
		{"int64", int64(7), 7.0, true},
		{"bool true", true, 1.0, true},
		{"bool false", false, 0.0, true},
		{"numeric string", "42", 42.0, true},
		{"nil", nil, 0, false},
		{"slice", []string{"a"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ToFloat64(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMapToFloat64(t *testing.T) {
	in := map[string]any{
		"energy":  "450",
		"protein": 21.5,
		"note":    "非数值",
	}
	out := MapToFloat64(in)
	if len(out) != 2 {
		t.Fatalf("MapToFloat64 kept %d entries, want 2", len(out))
	}
	if out["energy"] != 450 || out["protein"] != 21.5 {
		t.Errorf("MapToFloat64 = %v", out)
	}
}
