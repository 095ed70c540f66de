// Package printer writes human facing command output: status lines, doctor
// style check lists and the final error box.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/criterio"
	"golang.org/x/term"

	"github.com/hay-kot/scribble/internal/styles"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = styles.Dot
)

var (
	red     = lipgloss.NewStyle().Foreground(styles.ColorRed)
	green   = lipgloss.NewStyle().Foreground(styles.ColorGreen)
	yellow  = lipgloss.NewStyle().Foreground(styles.ColorYellow)
	gray    = lipgloss.NewStyle().Foreground(styles.ColorGray)
	section = lipgloss.NewStyle().Bold(true).Underline(true)
)

type ctxKey struct{}

// Printer handles formatted output. Styling is applied only when the writer
// is a terminal.
type Printer struct {
	writer io.Writer
	color  bool
}

// New creates a Printer that writes to w.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{writer: w, color: color}
}

// NewContext returns a context with the printer attached
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// FatalError prints a boxed error. It does not exit.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.validationErrors(err, fieldErrs)
		return
	}

	p.write(
		p.style(red, "╭ Error"),
		p.style(red, "│")+" "+p.style(gray, err.Error()),
		p.style(red, "╵"),
	)
}

// validationErrors lists each field error under the context of the wrapping
// error, e.g. "load config: ".
func (p *Printer) validationErrors(wrapped error, fieldErrs criterio.FieldErrors) {
	bar := p.style(red, "│")
	lines := []string{p.style(red, "╭ Validation Error")}

	errStr, fieldStr := wrapped.Error(), fieldErrs.Error()
	if idx := strings.Index(errStr, fieldStr); idx > 0 {
		lines = append(lines, bar+" "+p.style(gray, strings.TrimSuffix(errStr[:idx], ": ")), bar)
	}

	for _, fe := range fieldErrs {
		line := bar + " " + p.style(red, Cross) + " "
		if fe.Field != "" {
			line += p.style(gray, fe.Field+": ")
		}
		lines = append(lines, line+fe.Err.Error())
	}

	p.write(append(lines, p.style(red, "╵"))...)
}

// Successf prints a success message in green
func (p *Printer) Successf(format string, args ...any) {
	p.write(p.style(green, Check+" "+fmt.Sprintf(format, args...)))
}

// Infof prints an info message in gray
func (p *Printer) Infof(format string, args ...any) {
	p.write(p.style(gray, Dot+" "+fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow
func (p *Printer) Warnf(format string, args ...any) {
	p.write(p.style(yellow, Dot+" "+fmt.Sprintf(format, args...)))
}

// Printf prints a plain message.
func (p *Printer) Printf(format string, args ...any) {
	p.write(fmt.Sprintf(format, args...))
}

// Section prints a bold, underlined header.
func (p *Printer) Section(title string) {
	p.write(p.style(section, title))
}

// CheckItem prints a passing item.
func (p *Printer) CheckItem(label, detail string) {
	p.item(green, Check, label, detail)
}

// WarnItem prints a warning item.
func (p *Printer) WarnItem(label, detail string) {
	p.item(yellow, Dot, label, detail)
}

// FailItem prints a failing item.
func (p *Printer) FailItem(label, detail string) {
	p.item(red, Cross, label, detail)
}

func (p *Printer) item(st lipgloss.Style, symbol, label, detail string) {
	line := "  " + p.style(st, symbol) + " " + label
	if detail != "" {
		line += ": " + detail
	}
	p.write(line)
}

func (p *Printer) style(st lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return st.Render(text)
}

func (p *Printer) write(lines ...string) {
	_, _ = io.WriteString(p.writer, strings.Join(lines, "\n")+"\n")
}
