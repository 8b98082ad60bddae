package utils

import (
	"regexp"
	"testing"
)

func TestGenerateOrderNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{10}$`)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		number, err := GenerateOrderNumber()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(number) {
			t.Fatalf("order number %q does not match %s", number, pattern)
		}
		if seen[number] {
			t.Fatalf("duplicate order number %q after %d draws", number, i)
		}
		seen[number] = true
	}
}
