package validate

import "testing"

func TestRequired(t *testing.T) {
	if Required("  ") {
		t.Fatalf("whitespace must not pass Required")
	}
	if !Required("x") {
		t.Fatalf("non-empty value must pass Required")
	}
}

func TestSnowflake(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"123456789012345678", true},
		{"12345678901234567", true},
		{"12345678901234567890", true},
		{"1234567890123456", false},
		{"123456789012345678901", false},
		{"12345678901234567a", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Snowflake(tc.value); got != tc.want {
			t.Fatalf("Snowflake(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
