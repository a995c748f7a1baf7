//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	// The hotkey library requires registration from the main OS thread.
	runtime.LockOSThread()
}

func main() {
	mainthread.Init(run)
}
