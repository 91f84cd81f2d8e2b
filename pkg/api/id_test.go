package api

import "testing"

func TestNewRecordID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRecordID()
		if !ValidateRecordID(id) {
			t.Fatalf("NewRecordID() = %q, does not match pattern", id)
		}
		if seen[id] {
			t.Fatalf("NewRecordID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"rec_abcdefghijklmnopqrstuvwx", true},
		{"rec_ABCDEFGHIJKLMNOPQRSTUVW1", true},
		{"rec_short", false},
		{"resp_abcdefghijklmnopqrstuvwx", false},
		{"rec_abcdefghijklmnopqrstuv-x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateRecordID(tt.id); got != tt.want {
			t.Errorf("ValidateRecordID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
