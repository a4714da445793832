// Package nfe validates Brazilian NF-e electronic invoice access keys.
package nfe

// KeyLength is the fixed length of an NF-e access key: 43 payload digits
// followed by one check digit.
const KeyLength = 44

// Modulo-11 weights, cycling from the rightmost payload digit leftward.
var weights = [8]int{2, 3, 4, 5, 6, 7, 8, 9}

// Valid reports whether key is a well-formed NF-e access key: exactly 44
// ASCII digits whose final digit matches the weighted Modulo-11 checksum of
// the first 43. It never panics; any malformed input yields false.
func Valid(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for i := 0; i < KeyLength; i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return int(key[KeyLength-1]-'0') == CheckDigit(key[:KeyLength-1])
}

// CheckDigit computes the Modulo-11 check digit for a 43-digit payload.
// The payload must already be digit-only; callers outside this package use
// it to mint test fixtures and to pre-compute keys for emission.
func CheckDigit(payload string) int {
	sum := 0
	for i := 0; i < len(payload); i++ {
		// Weight 2 applies to the rightmost payload digit, increasing
		// leftward and wrapping back to 2 after 9.
		sum += int(payload[i]-'0') * weights[(len(payload)-1-i)%8]
	}
	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}
