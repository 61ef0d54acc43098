package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// ErrDuplicateOrderID is returned by storage when an order id collides.
var ErrDuplicateOrderID = errors.New("duplicate order id")

const orderIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var orderIDPattern = regexp.MustCompile(`^[A-Z0-9_]+-\d{8}-\d{3}-\d{3}-[A-Z]{3}$`)

// NewOrderID builds {PREFIX}-{YYYYMMDD}-{ddd}-{ddd}-{LLL}. The prefix is
// the upper-cased partner id, or PLZ for internal movements.
func NewOrderID(partner string, now time.Time) string {
	prefix := strings.ToUpper(strings.TrimSpace(partner))
	if prefix == "" {
		prefix = "PLZ"
	}
	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = orderIDLetters[rand.IntN(len(orderIDLetters))]
	}
	return fmt.Sprintf("%s-%s-%03d-%03d-%s",
		prefix, now.UTC().Format("20060102"), rand.IntN(1000), rand.IntN(1000), letters)
}

// ValidOrderID reports whether id has the order id shape.
func ValidOrderID(id string) bool {
	return orderIDPattern.MatchString(id)
}
