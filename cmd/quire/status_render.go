package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

const checkLabelWidth = 22

func renderCheckLine(name string, passed bool, detail string, colorize bool) string {
	label := "FAIL"
	color := ansiRed
	if passed {
		label = "OK"
		color = ansiGreen
	}
	line := fmt.Sprintf("  %-*s [%s]", checkLabelWidth, name+":", label)
	if detail != "" {
		line += " " + detail
	}
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
