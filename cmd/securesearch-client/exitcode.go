package main

import (
	"errors"

	"github.com/securesearch/securesearch/internal/clientpipeline"
)

const (
	exitSuccess = 0
	exitUsage   = 1
	exitAuth    = 2
	exitNetwork = 3
	exitServer  = 4
)

// exitCodeFor maps a clientpipeline error to the CLI exit code contract:
// 0 success, 2 auth, 3 network, 4 server error.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, clientpipeline.ErrAuth):
		return exitAuth
	case errors.Is(err, clientpipeline.ErrNetwork):
		return exitNetwork
	case errors.Is(err, clientpipeline.ErrServer):
		return exitServer
	case errors.Is(err, clientpipeline.ErrPlaintextLeak):
		return exitUsage
	default:
		return exitUsage
	}
}
