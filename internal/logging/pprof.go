package logging

import (
	"log/slog"
	"net/http"
	_ "net/http/pprof"
)

const pprofAddr = "localhost:6060"

// startPprof serves the runtime profiles while a long scan is being diagnosed.
func startPprof() {
	go func() {
		Logger().Info("pprof_listening", slog.String("addr", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			Logger().Error("pprof_failed", slog.String("error", err.Error()))
		}
	}()
}
