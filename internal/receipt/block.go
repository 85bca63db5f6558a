package receipt

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Style is the printer state a block is rendered with. Width and Height are
// character magnification factors in the range 1..8.
type Style struct {
	Align  Align
	Width  int
	Height int
	Bold   bool
}

var (
	Normal  = Style{Align: AlignLeft, Width: 1, Height: 1}
	Label   = Style{Align: AlignLeft, Width: 1, Height: 1, Bold: true}
	Divider = Style{Align: AlignCenter, Width: 1, Height: 1}
)

type Kind int

const (
	KindText Kind = iota
	KindCut
)

// Block is one styled run of text, or the terminal paper cut. Text carries
// its own line breaks.
type Block struct {
	Kind  Kind
	Style Style
	Text  string
}

func Text(style Style, text string) Block {
	return Block{Kind: KindText, Style: style, Text: text}
}

func Cut() Block {
	return Block{Kind: KindCut}
}

// PlainText joins the text of all blocks, ignoring styles. Useful for
// previews and logs.
func PlainText(blocks []Block) string {
	n := 0
	for _, b := range blocks {
		n += len(b.Text)
	}
	buf := make([]byte, 0, n)
	for _, b := range blocks {
		buf = append(buf, b.Text...)
	}
	return string(buf)
}
