package config

import "testing"

func TestGetenv(t *testing.T) {
	t.Setenv("CONFIG_TEST_SET", "value")
	if got := Getenv("CONFIG_TEST_SET", "fallback"); got != "value" {
		t.Errorf("Getenv set = %q, want value", got)
	}
	if got := Getenv("CONFIG_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("Getenv unset = %q, want fallback", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "42")
	t.Setenv("CONFIG_TEST_BAD", "not-a-number")
	if got := Int("CONFIG_TEST_INT", 7); got != 42 {
		t.Errorf("Int = %d, want 42", got)
	}
	if got := Int("CONFIG_TEST_BAD", 7); got != 7 {
		t.Errorf("Int on bad value = %d, want 7", got)
	}
	if got := Int("CONFIG_TEST_MISSING", 7); got != 7 {
		t.Errorf("Int on missing value = %d, want 7", got)
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		fallback string
		want     string
	}{
		{"bare", "pdf-pages", "", "pdf-pages/"},
		{"already slashed", "pdf-pages/", "", "pdf-pages/"},
		{"double slashed", "pdf-pages//", "", "pdf-pages/"},
		{"fallback", "", "text-pages/", "text-pages/"},
		{"empty everywhere", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_TEST_PREFIX", tt.env)
			if got := Prefix("CONFIG_TEST_PREFIX", tt.fallback); got != tt.want {
				t.Errorf("Prefix(%q, %q) = %q, want %q", tt.env, tt.fallback, got, tt.want)
			}
		})
	}
}
