//go:build windows

package ipc

import (
	"net"
	"os"

	"github.com/Microsoft/go-winio"
)

// pipeConfig limits the pipe to its creator, matching the 0600 unix socket.
var pipeConfig = &winio.PipeConfig{
	SecurityDescriptor: "D:P(A;;GA;;;OW)",
	InputBufferSize:    64 << 10,
	OutputBufferSize:   64 << 10,
}

func Listen(addr string) (net.Listener, error) {
	if addr == "" {
		return nil, os.ErrInvalid
	}
	return winio.ListenPipe(addr, pipeConfig)
}

func Dial(addr string) (net.Conn, error) {
	if addr == "" {
		return nil, os.ErrInvalid
	}
	timeout := dialTimeout
	return winio.DialPipe(addr, &timeout)
}
