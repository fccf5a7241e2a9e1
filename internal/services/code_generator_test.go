package services

import (
	"strings"
	"testing"

	"dealhub/internal/config"
)

func testCouponConfig() *config.CouponConfig {
	return &config.CouponConfig{
		CodePrefix:       "DEAL",
		CodeSuffixLength: 6,
		CodeAlphabet:     config.DefaultCodeAlphabet,
		ValidityDays:     90,
		MaxCodeRetries:   5,
	}
}

func TestGenerate_Format(t *testing.T) {
	g := NewCodeGenerator(testCouponConfig())

	code, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.HasPrefix(code, "DEAL-") {
		t.Errorf("Expected prefix DEAL-, got %s", code)
	}
	if len(code) != len("DEAL-")+6 {
		t.Errorf("Unexpected code length: %s", code)
	}
	for _, r := range code[len("DEAL-"):] {
		if !strings.ContainsRune(config.DefaultCodeAlphabet, r) {
			t.Errorf("Suffix contains character outside alphabet: %c in %s", r, code)
		}
	}
}

func TestGenerate_NoAmbiguousCharacters(t *testing.T) {
	// Алфавит без 0/O/1/I/L — коды диктуют по телефону.
	g := NewCodeGenerator(testCouponConfig())

	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if strings.ContainsAny(code[len("DEAL-"):], "0O1IL") {
			t.Errorf("Code contains ambiguous character: %s", code)
		}
	}
}

func TestGenerate_Unique(t *testing.T) {
	g := NewCodeGenerator(testCouponConfig())

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if seen[code] {
			t.Fatalf("Duplicate code generated after %d iterations: %s", i, code)
		}
		seen[code] = true
	}
}

func TestMatches(t *testing.T) {
	g := NewCodeGenerator(testCouponConfig())

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid code", "DEAL-7XK2MQ", true},
		{"wrong prefix", "PROMO-7XK2MQ", false},
		{"missing separator", "DEAL7XK2MQ", false},
		{"suffix too short", "DEAL-7XK2M", false},
		{"suffix too long", "DEAL-7XK2MQZ", false},
		{"ambiguous character", "DEAL-7XK0MQ", false},
		{"lowercase suffix", "DEAL-7xk2mq", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Matches(tt.code); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestNewCodeGenerator_Defaults(t *testing.T) {
	g := NewCodeGenerator(&config.CouponConfig{})

	code, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !g.Matches(code) {
		t.Errorf("Generated code does not match own format: %s", code)
	}
}
