package render

// ESC/POS emphasis commands (ESC E n).
//
// Templates splice these directly into line text before Center or Justify
// run, so they are counted as three characters each. A bold line whose text
// plus control bytes is wider than the paper gets cut like any other text and
// can lose its BoldOff, leaving the rest of the document bold.
const (
	BoldOn  = "\x1bE\x01"
	BoldOff = "\x1bE\x00"
)

func bold(text string) string {
	return BoldOn + text + BoldOff
}
