package printer

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"

	"github.com/receiptme/receiptd/internal/receipt"
)

const (
	esc = 0x1b
	gs  = 0x1d
)

var (
	cmdInit     = []byte{esc, '@'}
	cmdCodePage = []byte{esc, 't', 0} // PC437
	cmdCut      = []byte{gs, 'V', 'A', 3}
)

// Encode renders blocks as an ESC/POS byte stream. Text is transcoded to
// code page 437; runes outside it print as '?'.
func Encode(blocks []receipt.Block) []byte {
	var buf bytes.Buffer
	buf.Write(cmdInit)
	buf.Write(cmdCodePage)

	for _, b := range blocks {
		switch b.Kind {
		case receipt.KindCut:
			buf.Write(cmdCut)
		default:
			writeStyle(&buf, b.Style)
			writeText(&buf, b.Text)
		}
	}
	return buf.Bytes()
}

func writeStyle(buf *bytes.Buffer, s receipt.Style) {
	buf.Write([]byte{esc, 'a', byte(alignment(s.Align))})

	bold := byte(0)
	if s.Bold {
		bold = 1
	}
	buf.Write([]byte{esc, 'E', bold})

	w, h := clampScale(s.Width), clampScale(s.Height)
	buf.Write([]byte{gs, '!', byte((w-1)<<4 | (h - 1))})
}

func writeText(buf *bytes.Buffer, text string) {
	for _, r := range text {
		if r == '\n' {
			buf.WriteByte('\n')
			continue
		}
		if c, ok := charmap.CodePage437.EncodeRune(r); ok {
			buf.WriteByte(c)
		} else {
			buf.WriteByte('?')
		}
	}
}

func alignment(a receipt.Align) int {
	switch a {
	case receipt.AlignCenter:
		return 1
	case receipt.AlignRight:
		return 2
	default:
		return 0
	}
}

func clampScale(n int) int {
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}
