package exception

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/monitoring"
)

// SafeGo runs fn in a goroutine and logs a recovered panic instead of crashing.
func SafeGo(name string, fn func()) {
	go func() {
		defer recoverPanic(name, false)
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for loops the process cannot live without.
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer recoverPanic(name, true)
		fn()
	}()
}

// Recover reports whether fn panicked, logging the panic like SafeGo does.
func Recover(name string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			report(name, r)
		}
	}()
	fn()
	return false
}

func recoverPanic(name string, exit bool) {
	r := recover()
	if r == nil {
		return
	}
	report(name, r)
	if exit {
		os.Exit(1)
	}
}

func report(name string, r interface{}) {
	monitoring.IncreasePanicCount()
	logx.Error("PANIC", fmt.Sprintf("Panic in %s: %v\n%s", name, r, debug.Stack()))
}
