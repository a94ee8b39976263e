package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/boot"
	"github.com/lunixbochs/rproc/go/models"
)

// RprocCmd is the scaffolding shared by the subcommands: common flags,
// console setup and error reporting.
type RprocCmd struct {
	Config *models.Config
	Flags  *flag.FlagSet

	// Usage is the argument summary after [options], e.g. "<elf>".
	Usage string
	// NArgs is the required positional argument count, -1 for any.
	NArgs int

	SetupFlags func() error
	Main       func(args []string) error

	profile string
	stderr  io.Writer
}

func NewRprocCmd(name string) *RprocCmd {
	return &RprocCmd{
		Flags:  flag.NewFlagSet(name, flag.ExitOnError),
		stderr: os.Stderr,
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err, and the stack trace of the innermost error that has
// one.
func (c *RprocCmd) PrintError(err error) {
	w := c.stderr
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	var st stackTracer
	for e := err; e != nil; {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
		cause, ok := e.(interface{ Cause() error })
		if !ok {
			break
		}
		e = cause.Cause()
	}
	if st == nil {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range st.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		frame := fmt.Sprintf("%+s", f)
		tmp := strings.SplitN(frame, "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	// calculate column widths
	widths := make([]int, 2)
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if len(f[i]) > widths[i] {
				widths[i] = len(f[i])
			}
		}
	}
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(w, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(w, "%s()\n", f[2])
	}
}

// Profile resolves -profile: a JSON file path, or a name looked up in the
// user's profiles.json.
func (c *RprocCmd) Profile() (*boot.Profile, error) {
	if strings.HasSuffix(c.profile, ".json") {
		return boot.LoadProfile(c.profile)
	}
	return boot.FindProfile(c.profile)
}

// Run parses argv and calls Main, returning the exit code.
func (c *RprocCmd) Run(argv []string) int {
	fs := c.Flags
	verbose := fs.Bool("v", false, "verbose output")
	color := fs.Bool("color", isatty.IsTerminal(os.Stderr.Fd()), "colorize state output")
	outfile := fs.String("o", "", "redirect console output to file (default stderr)")
	fs.StringVar(&c.profile, "profile", "j721e", "SoC profile name or .json path")

	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: %s [options] %s\n\nOptions:\n", argv[0], c.Usage)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(c.stderr, flags)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	fs.Parse(argv[1:])
	args := fs.Args()
	if c.NArgs >= 0 && len(args) != c.NArgs {
		fs.Usage()
		return 1
	}

	c.Config = &models.Config{Color: *color, Verbose: *verbose}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			c.PrintError(errors.WithStack(err))
			return 1
		}
		defer out.Close()
		c.Config.Output = out
	}
	if err := c.Main(args); err != nil {
		c.PrintError(err)
		return 1
	}
	return 0
}
