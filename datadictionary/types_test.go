package datadictionary

import "testing"

func TestIsValidTypeInt(t *testing.T) {
	valid := IsValidType("123", "INT")
	invalid := IsValidType("abc", "INT")

	if !valid || invalid {
		t.Errorf("INT validation failed")
	}
}

func TestIsValidTypeChar(t *testing.T) {
	valid := IsValidType("X", "CHAR")
	invalid := IsValidType("XY", "CHAR")

	if !valid || invalid {
		t.Errorf("CHAR validation failed")
	}
}

func TestIsValidTypeBoolean(t *testing.T) {
	cases := map[string]bool{
		"Y": true, "N": true, "X": false, "": false,
	}

	for input, expected := range cases {
		got := IsValidType(input, "BOOLEAN")

		if got != expected {
			t.Errorf("BOOLEAN type test failed for %q: expected %v", input, expected)
		}
	}
}

func TestIsValidTypeUTCTimestamp(t *testing.T) {
	valid1 := IsValidType("20230703-15:04:05", "UTCTIMESTAMP")
	valid2 := IsValidType("20230703-15:04:05.000", "UTCTIMESTAMP")
	invalid := IsValidType("invalid", "UTCTIMESTAMP")

	if !valid1 || !valid2 || invalid {
		t.Errorf("UTCTIMESTAMP validation failed")
	}
}

func TestIsValidTypeMonthYear(t *testing.T) {
	cases := map[string]bool{
		"202407":    true,
		"202407-w2": true,
		"20240709":  true,
		"07-2024":   false,
	}
	for input, expected := range cases {
		got := IsValidType(input, "MONTHYEAR")
		if got != expected {
			t.Errorf("MONTHYEAR test failed for %q: expected %v", input, expected)
		}
	}
}

func TestIsValidTypeNumeric(t *testing.T) {
	cases := []struct {
		val, typ string
		want     bool
	}{
		{"1.25", "PRICE", true},
		{"-3", "QTY", true},
		{"1e3", "AMT", false},
		{"7", "SEQNUM", true},
		{"+7", "SEQNUM", false},
		{"3", "NUMINGROUP", true},
	}
	for _, c := range cases {
		if got := IsValidType(c.val, c.typ); got != c.want {
			t.Errorf("IsValidType(%q, %s) = %v, want %v", c.val, c.typ, got, c.want)
		}
	}
}

func TestIsValidTypeGeneric(t *testing.T) {
	if !IsValidType("anything", "STRING") {
		t.Error("Expected STRING to be valid")
	}
	if !IsValidType("anything", "SOMECUSTOMTYPE") {
		t.Error("Expected unknown types to be valid")
	}
}
