package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

var chState = ansi.ColorCode("default+bu:default")
var chOk = ansi.ColorCode("green+b:default")
var chFail = ansi.ColorCode("red+b:default")
var chSkip = ansi.ColorCode("yellow:default")

func colorPad(s, color string, pad int) string {
	length := len(s)
	s = color + s + ansi.Reset
	if length < pad {
		s += strings.Repeat(" ", pad-length)
	}
	return s
}

type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

func (o Outcome) color() string {
	switch o {
	case OutcomeOk:
		return chOk
	case OutcomeSkipped:
		return chSkip
	default:
		return chFail
	}
}

// StateLine renders one boot stage for the console, e.g.
// "StartAuxiliaryCores        failed (core 2: bad phdr device address)"
func StateLine(state string, o Outcome, note string, color bool) string {
	const pad = 26
	var line string
	if color {
		line = colorPad(state, chState, pad) + " " + o.color() + o.String() + ansi.Reset
	} else {
		line = fmt.Sprintf("%-*s %s", pad, state, o)
	}
	if note != "" {
		line += " (" + note + ")"
	}
	return line
}

// Stage logs a boot stage through the config.
func (c *Config) Stage(state string, o Outcome, note string) {
	color := c != nil && c.Color
	c.Printf("%s\n", StateLine(state, o, note, color))
}
