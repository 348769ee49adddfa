package main

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// printer writes styled output to one writer.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Info(format string, args ...any) {
	pterm.Info.WithWriter(p.w).Printfln(format, args...)
}

func (p *printer) Success(format string, args ...any) {
	pterm.Success.WithWriter(p.w).Printfln(format, args...)
}

func (p *printer) Warning(format string, args ...any) {
	pterm.Warning.WithWriter(p.w).Printfln(format, args...)
}

// Table prints rows under headers.
func (p *printer) Table(headers []string, rows [][]string) {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	pterm.DefaultTable.
		WithWriter(p.w).
		WithHasHeader().
		WithData(data).
		Render() //nolint:errcheck
}

// Print writes raw text, used for streamed deltas.
func (p *printer) Print(s string) {
	fmt.Fprint(p.w, s)
}

func (p *printer) Dim(s string) {
	fmt.Fprint(p.w, pterm.FgGray.Sprint(s))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
