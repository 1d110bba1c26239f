package protocol

import "math/rand/v2"

const hexDigits = "0123456789abcdef"

// NewColor returns a random "#rrggbb" display color. Colors are not unique
// across connections.
func NewColor() string {
	b := []byte("#000000")
	for i := 1; i < len(b); i++ {
		b[i] = hexDigits[rand.IntN(16)]
	}
	return string(b)
}
