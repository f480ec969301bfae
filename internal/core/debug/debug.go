// The debug package contains the optional diagnostic utilities that can be
// enabled for a server through the debugging config section.
package debug

import (
	"fmt"
	"net/http"
	// Importing this package has the side effect of registering its handlers
	// with the default HTTP server.
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

// StartPprofServer starts an HTTP server on pprofPort that exposes the
// standard pprof endpoints for the running process.
func StartPprofServer(logger *zap.SugaredLogger, pprofPort int) {
	go func() {
		logger.Infof("starting pprof server on port %d", pprofPort)

		if err := http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil); err != nil {
			logger.Warnf("unable to start pprof server: %v", err)
		}
	}()
}

// DumpMessage writes a readable dump of a decoded message to stdout. Only
// intended for use when message logging is enabled since it's noisy.
func DumpMessage(direction string, v interface{}) {
	fmt.Printf("%s\n%s", direction, spew.Sdump(v))
}
