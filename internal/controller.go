// Package internal wires the server's shared resources together and owns the
// startup/shutdown sequence.
package internal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rampartgame/rampart/internal/core"
	"github.com/rampartgame/rampart/internal/core/debug"
	"github.com/rampartgame/rampart/internal/game"
	"github.com/rampartgame/rampart/internal/server"
)

// Controller is the main entrypoint for the server. It's responsible for
// initializing the shared resources (logging, the room registry, the
// reconnect policy) and launching the frontend.
type Controller struct {
	Config *core.Config

	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which is shared by every component.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return err
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	simConfig := game.SimConfig{
		GridWidth:    c.Config.Game.GridWidth,
		GridHeight:   c.Config.Game.GridHeight,
		StartingGold: c.Config.Game.StartingGold,
	}
	registry := game.NewRegistry(func(id string) *game.Room {
		return game.NewRoom(id, game.NewTowerDefense(simConfig), c.logger)
	}, c.logger)

	policy := game.NewReconnectPolicy(registry, c.Config.Game.ReconnectGrace, c.logger)

	gateway := server.NewGateway(registry, policy, c.logger, c.Config.Debugging.MessageLoggingEnabled)

	frontend := &server.Frontend{
		Config:  c.Config,
		Gateway: gateway,
		Logger:  c.logger,
	}
	if err := frontend.Start(ctx, &c.wg); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}
