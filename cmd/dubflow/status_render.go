package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset        = "\x1b[0m"
	statusLabelWidth = 20
)

// statusPrinter writes "== Section ==" headers and aligned
// "  label: [KIND] detail" lines, coloured when out is a terminal.
type statusPrinter struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: isTerminal(out)}
}

func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.out)
	}
	p.sections++
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(header))
	fmt.Fprintln(p.out, p.paint(statusStyles[statusInfo].color, header))
	fmt.Fprintln(p.out, p.paint(statusStyles[statusInfo].color, rule))
}

func (p *statusPrinter) line(label string, kind statusKind, detail string) {
	style := statusStyles[kind]
	text := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", style.label)
	if detail = strings.TrimSpace(detail); detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(p.out, p.paint(style.color, text))
}

// check prints a pass/fail line; optional failures downgrade to WARN.
func (p *statusPrinter) check(label string, passed, optional bool, detail string) {
	kind := statusOK
	switch {
	case passed:
	case optional:
		kind = statusWarn
	default:
		kind = statusError
	}
	p.line(label, kind, detail)
}

func (p *statusPrinter) paint(color, text string) string {
	if !p.colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
