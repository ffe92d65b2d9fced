package servers

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"tzevents/pkg/resources"
)

// baseServer has nothing to serve; it holds the process open and releases
// the shared resources when the application stops.
type baseServer struct {
	name         string
	closeChannel chan struct{}
	closeOnce    sync.Once
	closables    []resources.Closable
}

func BuildBaseServer(closables ...resources.Closable) (string, Server) {
	return "base-server", NewBaseServer(closables...)
}

func NewBaseServer(closables ...resources.Closable) Server {
	return &baseServer{
		name:         "base-server",
		closeChannel: make(chan struct{}),
		closables:    closables,
	}
}

func (server *baseServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Msg("starting up")

	select {
	case <-server.closeChannel:
	case <-ctx.Done():
	}

	return nil
}

// Stop closes the resources in reverse order of registration. Only the
// first call does anything.
func (server *baseServer) Stop(ctx context.Context) error {
	stopped := false

	server.closeOnce.Do(func() {
		stopped = true

		log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
		defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

		for i := len(server.closables) - 1; i >= 0; i-- {
			server.closables[i].Close()
		}

		close(server.closeChannel)
	})

	if !stopped {
		return ErrServerAlreadyStopped(server.name)
	}

	return nil
}
