package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
)

const (
	placeholder     = "N/A"
	anonymousSender = "Anonymous"
	dateLayout      = "01/02/2006"
	timeLayout      = "03:04 PM"
)

var (
	brandStyle   = Style{Align: AlignCenter, Width: 4, Height: 4, Bold: true}
	contentStyle = Style{Align: AlignLeft, Width: 3, Height: 3}
)

// Formatter turns messages into receipt blocks. The display zone is a fixed
// offset: daylight saving time is not applied.
type Formatter struct {
	brand     []string
	recipient string
	footer    string
	width     int
	zone      *time.Location
	zoneLabel string
}

func NewFormatter(cfg config.PrinterConfig) *Formatter {
	width := cfg.LineWidth
	if width <= 0 {
		width = 48
	}
	offset := cfg.UTCOffset.Duration()
	return &Formatter{
		brand:     cfg.Brand,
		recipient: cfg.Recipient,
		footer:    cfg.Footer,
		width:     width,
		zone:      time.FixedZone(cfg.ZoneLabel, int(offset/time.Second)),
		zoneLabel: cfg.ZoneLabel,
	}
}

// Format renders m. It never fails: values that cannot be rendered print as
// a placeholder.
func (f *Formatter) Format(m *core.Message) []Block {
	date, clock := f.timestamp(m.CreatedAt)

	sender := strings.TrimSpace(m.Sender)
	if sender == "" {
		sender = anonymousSender
	}

	var blocks []Block
	blocks = append(blocks, f.header()...)
	blocks = append(blocks, field("TO", f.recipient, "\n\n")...)
	blocks = append(blocks, field("MSG", fmt.Sprintf("#%03d", m.SequenceNumber), "\n\n")...)
	blocks = append(blocks, field("DATE", date, "\n")...)
	blocks = append(blocks, field("TIME", clock, "\n\n")...)
	blocks = append(blocks, field("FROM", sender, "\n\n")...)
	blocks = append(blocks,
		Text(Divider, f.rule('-')+"\n\n"),
		Text(contentStyle, m.Content+"\n\n"),
	)
	blocks = append(blocks, f.trailer()...)
	return blocks
}

// TestPage renders a short page for checking the printer connection.
func (f *Formatter) TestPage() []Block {
	blocks := []Block{
		Text(Divider, f.rule('=')+"\n"),
		Text(Style{Align: AlignCenter, Width: 1, Height: 1, Bold: true}, "TEST PRINT\n"),
		Text(Divider, f.rule('=')+"\n\n"),
		Text(Normal, "If you can read this, your\nprinter is working correctly!\n\n"),
	}
	return append(blocks, f.trailer()...)
}

func (f *Formatter) header() []Block {
	var b strings.Builder
	for _, line := range f.brand {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []Block{
		Text(brandStyle, b.String()),
		Text(Divider, f.rule('=')+"\n\n"),
	}
}

func (f *Formatter) trailer() []Block {
	return []Block{
		Text(Divider, f.rule('-')+"\n"+f.footer+"\n"+f.rule('-')+"\n\n\n"),
		Cut(),
	}
}

func (f *Formatter) timestamp(t time.Time) (string, string) {
	if t.IsZero() {
		return placeholder, placeholder
	}
	local := t.In(f.zone)
	clock := local.Format(timeLayout)
	if f.zoneLabel != "" {
		clock += " " + f.zoneLabel
	}
	return local.Format(dateLayout), clock
}

func (f *Formatter) rule(c byte) string {
	return strings.Repeat(string(c), f.width)
}

func field(label, value, end string) []Block {
	return []Block{
		Text(Label, label+": "),
		Text(Normal, value+end),
	}
}
