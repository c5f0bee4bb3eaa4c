package httpserver

import "errors"

var (
	ErrStart          = errors.New("httpserver: listen failed")
	ErrShutdown       = errors.New("httpserver: graceful shutdown did not complete")
	ErrShutdownHook   = errors.New("httpserver: shutdown hook returned an error")
	ErrAlreadyRunning = errors.New("httpserver: Run called twice")
)
