package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"time"
)

const (
	codePrefix       = "RES"
	codeRandomLength = 5
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxCodeAttempts bounds the generate-and-check loop; the UNIQUE
	// constraint on reservation_code is the final backstop.
	maxCodeAttempts = 10
)

var codePattern = regexp.MustCompile(`^RES-\d{8}-[A-Z0-9]{5}$`)

// CodeExistsFunc reports whether a reservation code is already taken
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// GenerateReservationCode produces a RES-YYYYMMDD-XXXXX code. The random
// part is drawn uniformly from [A-Z0-9] using rejection sampling so no
// character is favored.
func GenerateReservationCode(now time.Time) (string, error) {
	random := make([]byte, codeRandomLength)
	buf := make([]byte, 1)
	for i := 0; i < codeRandomLength; {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		// 252 = 36*7: reject the tail to keep the distribution uniform
		if buf[0] >= 252 {
			continue
		}
		random[i] = codeAlphabet[int(buf[0])%len(codeAlphabet)]
		i++
	}
	return fmt.Sprintf("%s-%s-%s", codePrefix, now.UTC().Format("20060102"), random), nil
}

// GenerateUniqueReservationCode retries generation against the exists
// predicate. Exhausting the attempt budget is fatal, never silently
// duplicated.
func GenerateUniqueReservationCode(ctx context.Context, now time.Time, exists CodeExistsFunc) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateReservationCode(now)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check reservation code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

// ValidReservationCode accepts exactly the shape the generator produces
func ValidReservationCode(code string) bool {
	return codePattern.MatchString(code)
}
