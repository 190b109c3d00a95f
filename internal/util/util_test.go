package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected length 16, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("non-hex character %q in %q", c, hex)
		}
	}

	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
	if GenerateRandomHex(-5) != "" {
		t.Error("expected empty string for negative length")
	}
}

func TestGenerateRandomIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRandomID("test_", 16)
		if !strings.HasPrefix(id, "test_") {
			t.Fatalf("missing prefix: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateConnectionID(t *testing.T) {
	id := GenerateConnectionID()
	if !strings.HasPrefix(id, "conn_") {
		t.Errorf("expected conn_ prefix, got %q", id)
	}
	if len(id) != len("conn_")+16 {
		t.Errorf("unexpected length for %q", id)
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("DTA_TEST_BOOL", "true")
	if !ParseBoolEnv("DTA_TEST_BOOL", false) {
		t.Error("expected true for set variable")
	}

	t.Setenv("DTA_TEST_BOOL", " off ")
	if ParseBoolEnv("DTA_TEST_BOOL", true) {
		t.Error("expected false for padded off value")
	}

	t.Setenv("DTA_TEST_BOOL", "not-a-bool")
	if !ParseBoolEnv("DTA_TEST_BOOL", true) {
		t.Error("expected default for unparseable value")
	}

	t.Setenv("DTA_TEST_BOOL", "")
	if ParseBoolEnv("DTA_TEST_BOOL", false) {
		t.Error("expected default for unset variable")
	}
}
