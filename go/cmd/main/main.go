package main

import (
	"github.com/lunixbochs/rproc/go/cmd"

	_ "github.com/lunixbochs/rproc/go/cmd/boot"
	_ "github.com/lunixbochs/rproc/go/cmd/console"
	_ "github.com/lunixbochs/rproc/go/cmd/inspect"
	_ "github.com/lunixbochs/rproc/go/cmd/load"
	_ "github.com/lunixbochs/rproc/go/cmd/mkelf"
)

func main() { cmd.Main() }
