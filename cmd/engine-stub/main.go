package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tknair/confirmdesk/internal/enginestub"
	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:8090", "listen address")
	symbols := flag.String("symbols", "NVDA", "comma-separated symbols to script")
	intervalMs := flag.Int("interval-ms", 250, "delay between scripted events")
	flag.Parse()

	var script []wire.Event
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		script = append(script, enginestub.DemoScript(sym)...)
	}

	srv := enginestub.New(script, enginestub.DemoSnapshot(), time.Duration(*intervalMs)*time.Millisecond)
	observ.Log("engine_stub_listening", map[string]any{"addr": *addr, "events": len(script)})
	if err := http.ListenAndServe(*addr, srv.Routes()); err != nil {
		observ.Warn("engine_stub_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
