package servers

import (
	"net/http"
	"time"

	"github.com/qmdx00/lifecycle"
)

// ShutdownTimeout bounds how long a server may take to stop.
const ShutdownTimeout = 15 * time.Second

var (
	_ Server = (*httpServer)(nil)
	_ Server = (*baseServer)(nil)
)

type Server interface {
	lifecycle.Server
}

var (
	_ Application = (*lifecycle.App)(nil)
)

type Application interface {
	ID() string
	Name() string
	Version() string
	Metadata() map[string]string
	Attach(name string, server lifecycle.Server)
	Run() error
}

var (
	_ BuildHttpServerFn = BuildHttpServer
)

type BuildHttpServerFn func(name string, server *http.Server) (string, Server)
