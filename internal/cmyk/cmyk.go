// Package cmyk converts between the textual print-color encoding used on
// positions ("cmyk(10%, 20%, 0%, 5%)") and a structured four-channel value.
package cmyk

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrInvalidChannelRange = errors.New("cmyk: channel out of range 0-100")
	ErrInvalidColorSpec    = errors.New("cmyk: invalid color specification")
)

var pattern = regexp.MustCompile(`(?i)^\s*cmyk\(\s*(\d{1,3})%\s*,\s*(\d{1,3})%\s*,\s*(\d{1,3})%\s*,\s*(\d{1,3})%\s*\)\s*$`)

// Channels is a print color expressed as four percentages.
type Channels struct {
	Cyan    int `json:"cyan"`
	Magenta int `json:"magenta"`
	Yellow  int `json:"yellow"`
	Black   int `json:"black"`
}

// White is the undyed raw garment color.
var White = Channels{}

// Validate reports ErrInvalidChannelRange if any channel is outside 0-100.
func (c Channels) Validate() error {
	for _, ch := range [...]struct {
		name  string
		value int
	}{
		{"cyan", c.Cyan},
		{"magenta", c.Magenta},
		{"yellow", c.Yellow},
		{"black", c.Black},
	} {
		if ch.value < 0 || ch.value > 100 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidChannelRange, ch.name, ch.value)
		}
	}
	return nil
}

func (c Channels) String() string {
	return fmt.Sprintf("cmyk(%d%%, %d%%, %d%%, %d%%)", c.Cyan, c.Magenta, c.Yellow, c.Black)
}

// Encode formats c in the canonical textual form.
func Encode(c Channels) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.String(), nil
}

// Decode parses s. The boolean is false when s is not a canonical color,
// which callers treat as "no color constraint" rather than as an error.
func Decode(s string) (Channels, bool) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Channels{}, false
	}

	values := make([]int, 4)
	for i := range values {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 100 {
			return Channels{}, false
		}
		values[i] = v
	}

	return Channels{Cyan: values[0], Magenta: values[1], Yellow: values[2], Black: values[3]}, true
}

// Parse is Decode that returns ErrInvalidColorSpec on mismatch.
func Parse(s string) (Channels, error) {
	c, ok := Decode(s)
	if !ok {
		return Channels{}, fmt.Errorf("%w: %q", ErrInvalidColorSpec, s)
	}
	return c, nil
}
