package utils

import "testing"

func TestValidateNodeID(t *testing.T) {
	valid := []string{"10001", "room-a", "survival_1", "abc.def"}
	for _, id := range valid {
		if err := ValidateNodeID(id); err != nil {
			t.Errorf("ValidateNodeID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "  ", "a:b", "a*", "a?", "a[1]", " padded "}
	for _, id := range invalid {
		if err := ValidateNodeID(id); err == nil {
			t.Errorf("ValidateNodeID(%q) = nil, want error", id)
		}
	}
}
