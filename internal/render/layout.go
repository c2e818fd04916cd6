// Package render turns structured sale, report and label data into
// fixed-width text for thermal receipt printers.
//
// Widths are measured in characters (Unicode code points), not bytes, so the
// tenge sign and Cyrillic product names occupy one column each. Device
// control sequences count as characters too; see BoldOn.
package render

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultWidth = 32
	DefaultRule  = '-'
)

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if textLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Center left-pads text so it sits in the middle of a width-column line.
// Text at least width long is cut to width with no ellipsis. No trailing
// padding is added; the printer drops line-final whitespace anyway.
func Center(text string, width int) string {
	n := textLen(text)
	if n >= width {
		return truncate(text, width)
	}
	return strings.Repeat(" ", (width-n)/2) + text
}

// Justify puts left and right on one line of exactly width characters.
// When both do not fit, left is cut to make room and right is kept whole,
// so a right side longer than width yields a line longer than width.
func Justify(left, right string, width int) string {
	l, r := textLen(left), textLen(right)
	if l+r+1 > width {
		maxLeft := width - r - 1
		if maxLeft < 0 {
			maxLeft = 0
		}
		return truncate(left, maxLeft) + " " + right
	}
	return left + strings.Repeat(" ", width-l-r) + right
}

// Line repeats char width times.
func Line(char rune, width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat(string(char), width)
}

func DefaultLine() string {
	return Line(DefaultRule, DefaultWidth)
}
