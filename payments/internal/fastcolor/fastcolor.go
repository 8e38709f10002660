// Package fastcolor writes fixed-width, ANSI-coloured cells without the
// allocation of a general purpose colour library.
package fastcolor

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an ANSI SGR escape sequence. The zero value writes plain text.
type Color string

const (
	None   Color = ""
	Reset  Color = "\x1b[0m"
	Bold   Color = "\x1b[1m"
	FgRed  Color = "\x1b[31m"
	FgBlue Color = "\x1b[34m"
)

// FromHex returns a 24-bit foreground colour for a "#rrggbb" string.
func FromHex(hex string) (Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return None, fmt.Errorf("fastcolor: %w", err)
	}
	r, g, b := c.RGB255()
	return Color(fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)), nil
}

var spaces = strings.Repeat(" ", 256)

func pad(w io.StringWriter, n int) {
	for n > 0 {
		k := min(n, len(spaces))
		w.WriteString(spaces[:k])
		n -= k
	}
}

// WriteStringFixed writes s in a cell of exactly width runes, truncating or
// padding as needed. alignRight pads on the left.
func (c Color) WriteStringFixed(w io.StringWriter, s string, width int, alignRight bool) {
	if n := utf8.RuneCountInString(s); n > width {
		idx := 0
		for i := 0; i < width; i++ {
			_, size := utf8.DecodeRuneInString(s[idx:])
			idx += size
		}
		s = s[:idx]
	}
	fill := width - utf8.RuneCountInString(s)

	if c != None && c != Reset {
		w.WriteString(string(c))
	}
	if alignRight {
		pad(w, fill)
	}
	w.WriteString(s)
	if !alignRight {
		pad(w, fill)
	}
	if c != None && c != Reset {
		w.WriteString(string(Reset))
	}
}
