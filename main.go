package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/sequencer/cmd"
	"github.com/mezonai/sequencer/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("SEQUENCER CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
