//go:build !rp2040 && !rp2350

package stream

import (
	"context"
	"io"
	"os"
)

// The "stdout" transport hands the service os.Stdout as its link, so a host
// binary can pipe frames into muxmon or a capture file. Telemetry is
// one-way; Read reports EOF.

func init() {
	RegisterTransport("stdout", func(TransportConfig) (Transport, error) {
		return stdoutTransport{}, nil
	})
}

type stdoutTransport struct{}

func (stdoutTransport) Open(context.Context) (io.ReadWriteCloser, error) { return stdoutLink{}, nil }
func (stdoutTransport) String() string                                   { return "stdout" }

type stdoutLink struct{}

func (stdoutLink) Read([]byte) (int, error)    { return 0, io.EOF }
func (stdoutLink) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutLink) Close() error                { return nil }
