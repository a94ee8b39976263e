package ui

import (
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/shibukawa/configdir"
)

type Repl struct {
	shell *Shell
	rl    *readline.Instance
}

func NewRepl(shell *Shell) (*Repl, error) {
	// get history path
	configDirs := configdir.New("rproc", "console")
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "=> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath,
	})
	if err != nil {
		return nil, err
	}
	// console output goes through readline so the prompt is redrawn
	shell.Out = rl.Stderr()
	if shell.Sim.Config != nil && shell.Sim.Config.Output == nil {
		shell.Sim.Config.Output = rl.Stderr()
	}
	return &Repl{shell: shell, rl: rl}, nil
}

// Run reads commands until EOF.
func (r *Repl) Run() {
	defer r.Close()
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			break
		}
		if err := r.shell.Exec(line); err != nil {
			r.shell.printf("%v\n", err)
		}
	}
}

func (r *Repl) Close() {
	r.rl.Close()
}
