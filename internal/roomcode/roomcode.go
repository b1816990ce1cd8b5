package roomcode

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
)

const (
	codeLength         = 4
	alphabet           = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultMaxAttempts = 500
)

var codePattern = regexp.MustCompile(`^[A-Z]{4}$`)

// ErrGenerationExhausted is returned when no unique code could be drawn within the
// attempt bound. Collisions are negligible at realistic lobby counts, so hitting this
// means the caller should surface a retry to the user rather than loop.
var ErrGenerationExhausted = errors.New("unable to generate a unique room code")

// Normalize trims surrounding whitespace and uppercases the code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the normalized form is exactly four letters A-Z.
func IsValid(code string) bool {
	return codePattern.MatchString(Normalize(code))
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}

// Generate draws uniformly random codes until one is absent from existing.
func Generate(existing map[string]struct{}) (string, error) {
	return GenerateN(existing, DefaultMaxAttempts)
}

// GenerateN is Generate with an explicit attempt bound.
func GenerateN(existing map[string]struct{}, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
	return "", ErrGenerationExhausted
}
