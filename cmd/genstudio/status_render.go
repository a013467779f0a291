package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

// statusStyle returns the bracket label and ANSI color for a status kind.
func statusStyle(kind statusKind) (label, color string) {
	switch kind {
	case statusOK:
		return "OK", "\x1b[32m"
	case statusWarn:
		return "WARN", "\x1b[33m"
	case statusError:
		return "ERROR", "\x1b[31m"
	default:
		return "INFO", "\x1b[34m"
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	bracket, color := statusStyle(kind)
	statusText := "[" + bracket + "]"
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize && color != "" {
		return color + base + ansiReset
	}
	return base
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
