package nfe

import (
	"math/rand"
	"strings"
	"testing"
)

// Access key published in SEFAZ documentation examples.
const sampleKey = "35240312345678000195550010000014761000047680"

func TestValid(t *testing.T) {
	t.Parallel()

	t.Run("accepts documented sample key", func(t *testing.T) {
		t.Parallel()
		if !Valid(sampleKey) {
			t.Fatalf("Valid(%q) = false, want true", sampleKey)
		}
	})

	t.Run("rejects corrupted check digit", func(t *testing.T) {
		t.Parallel()
		last := sampleKey[KeyLength-1]
		corrupted := sampleKey[:KeyLength-1] + string('0'+(last-'0'+1)%10)
		if Valid(corrupted) {
			t.Fatalf("Valid(%q) = true, want false", corrupted)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		t.Parallel()
		cases := map[string]string{
			"empty":     "",
			"short":     sampleKey[:KeyLength-1],
			"long":      sampleKey + "0",
			"letter":    "a" + sampleKey[1:],
			"space":     " " + sampleKey[1:],
			"all-dash":  strings.Repeat("-", KeyLength),
			"non-ascii": "ß" + sampleKey[2:],
		}
		for name, key := range cases {
			if Valid(key) {
				t.Errorf("%s: Valid(%q) = true, want false", name, key)
			}
		}
	})
}

func TestCheckDigit(t *testing.T) {
	t.Parallel()

	if got := CheckDigit(sampleKey[:KeyLength-1]); got != 0 {
		t.Fatalf("CheckDigit(sample payload) = %d, want 0", got)
	}

	t.Run("minted keys always validate", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewSource(4761))
		for i := 0; i < 200; i++ {
			var b strings.Builder
			for j := 0; j < KeyLength-1; j++ {
				b.WriteByte(byte('0' + rng.Intn(10)))
			}
			payload := b.String()
			digit := CheckDigit(payload)
			if digit < 0 || digit > 9 {
				t.Fatalf("CheckDigit(%q) = %d, out of range", payload, digit)
			}
			key := payload + string(rune('0'+digit))
			if !Valid(key) {
				t.Fatalf("Valid(%q) = false for minted key", key)
			}
		}
	})
}
