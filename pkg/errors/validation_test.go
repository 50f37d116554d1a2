package errors

import (
	"math"
	"testing"
)

func TestValidateProbability(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"half", 0.5, false},
		{"almost one", 0.999, false},

		{"one", 1, true},
		{"negative", -0.1, true},
		{"nan", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProbability("p_delete", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProbability(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidatePositiveAndRange(t *testing.T) {
	if err := ValidatePositive("confidence", 0.95); err != nil {
		t.Errorf("ValidatePositive(0.95) = %v", err)
	}
	if err := ValidatePositive("confidence", 0); err == nil {
		t.Error("ValidatePositive(0) = nil, want error")
	}
	if err := ValidateRange("k_represent", 4, 1, 100); err != nil {
		t.Errorf("ValidateRange(4) = %v", err)
	}
	if err := ValidateRange("k_represent", 0, 1, 100); err == nil {
		t.Error("ValidateRange(0) = nil, want error")
	}
}

func TestValidateTaxonName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Homo_sapiens", false},
		{"with dot", "seq.1", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"newline", "foo\nbar", true},
		{"null byte", "foo\x00bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaxonName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTaxonName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPrefix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "results/run1", false},
		{"absolute", "/tmp/run1", false},

		{"empty", "", true},
		{"directory", "results/", true},
		{"control", "run\x01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPrefix(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputPrefix(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
