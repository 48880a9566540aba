package httpserver

import "errors"

var (
	ErrStart    = errors.New("http server: listen failed")
	ErrShutdown = errors.New("http server: graceful shutdown timed out")
)
