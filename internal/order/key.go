package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidCompositeKey = errors.New("invalid composite key")

// Key is the dot-separated business key "orderNumber.posNumber[.sequenceNumber]".
// A zero Sequence addresses the position itself.
type Key struct {
	OrderNumber string
	PosNumber   int
	Sequence    int
}

func (k Key) IsProductionOrder() bool {
	return k.Sequence > 0
}

// Position returns the key of the position a production-order key belongs to.
func (k Key) Position() Key {
	return Key{OrderNumber: k.OrderNumber, PosNumber: k.PosNumber}
}

// WithSequence returns the production-order key for sequence number seq.
func (k Key) WithSequence(seq int) Key {
	return Key{OrderNumber: k.OrderNumber, PosNumber: k.PosNumber, Sequence: seq}
}

func (k Key) String() string {
	if k.Sequence > 0 {
		return fmt.Sprintf("%s.%d.%d", k.OrderNumber, k.PosNumber, k.Sequence)
	}
	return fmt.Sprintf("%s.%d", k.OrderNumber, k.PosNumber)
}

func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q must have 2 or 3 dot-separated parts", ErrInvalidCompositeKey, s)
	}
	if parts[0] == "" {
		return Key{}, fmt.Errorf("%w: %q has an empty order number", ErrInvalidCompositeKey, s)
	}

	posNumber, err := parsePositive(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q position number: %v", ErrInvalidCompositeKey, s, err)
	}
	key := Key{OrderNumber: parts[0], PosNumber: posNumber}

	if len(parts) == 3 {
		seq, err := parsePositive(parts[2])
		if err != nil {
			return Key{}, fmt.Errorf("%w: %q sequence number: %v", ErrInvalidCompositeKey, s, err)
		}
		key.Sequence = seq
	}

	return key, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
