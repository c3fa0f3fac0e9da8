// Package iocli is the terminal the client commands talk through.
package iocli

//go:generate moq -out io_mock.go . IO

// IO is everything a command prints or asks.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
