// Package hotkey reports press and release of the global push-to-talk
// combination, Ctrl+Shift+Space.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
