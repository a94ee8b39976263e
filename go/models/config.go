package models

import (
	"fmt"
	"io"
	"os"
)

type Config struct {
	Color   bool
	Verbose bool
	// Output receives console and debug output. nil means stderr.
	Output io.Writer
}

func (c *Config) out() io.Writer {
	if c == nil || c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

// Printf is the boot console.
func (c *Config) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out(), format, a...)
}

func (c *Config) Println(a ...interface{}) {
	fmt.Fprintln(c.out(), a...)
}

// Debugf only prints with -v.
func (c *Config) Debugf(format string, a ...interface{}) {
	if c == nil || !c.Verbose {
		return
	}
	fmt.Fprintf(c.out(), format+"\n", a...)
}

func (c *Config) Errorf(format string, a ...interface{}) {
	fmt.Fprintf(c.out(), "Error: "+format+"\n", a...)
}
