// The server command is the main entrypoint for running rampart. It loads
// the configuration, initializes the session core, and serves the game until
// it's signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rampartgame/rampart/internal"
	"github.com/rampartgame/rampart/internal/core"
)

var configFlag = flag.String("config", "./", "Path to the directory containing the server config file")

func main() {
	flag.Parse()

	config := core.LoadConfig(*configFlag)
	fmt.Println("using configuration file:", *configFlag)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(filepath.Dir(*configFlag)); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the server down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("waiting to shut down gracefully...")
		cancel()
	}()

	controller := &internal.Controller{
		Config: config,
	}
	if err := controller.Start(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("shut down")
}
