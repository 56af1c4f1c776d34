package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tknair/confirmdesk/internal/app"
	"github.com/tknair/confirmdesk/internal/config"
	"github.com/tknair/confirmdesk/internal/gate"
	"github.com/tknair/confirmdesk/internal/observ"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (optional)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			observ.Warn("config_load_failed", map[string]any{"path": *cfgPath, "error": err.Error()})
			os.Exit(1)
		}
	}

	pump := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local control surface for panels and hotkeys.
	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.HandleFunc("/gate", func(w http.ResponseWriter, r *http.Request) {
		slot := pump.Slots().Active()
		res := evaluateNow(pump, slot.Symbol)
		writeJSON(w, map[string]any{
			"symbol":       slot.Symbol,
			"slot":         slot.ID,
			"verdict":      res.Verdict,
			"reasons":      res.Reasons,
			"countdown_ms": res.Countdown.Milliseconds(),
			"tier":         res.Tier,
			"age_class":    res.AgeClass,
		})
	})
	mux.HandleFunc("/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := pump.ConfirmActive(r.Context())
		if err != nil {
			var blocked *gate.BlockedError
			if errors.As(err, &blocked) {
				w.WriteHeader(http.StatusConflict)
				writeJSON(w, map[string]any{"blocked": true, "reasons": blocked.Reasons})
				return
			}
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, result)
	})
	mux.HandleFunc("/slots/activate", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "bad slot id", http.StatusBadRequest)
			return
		}
		if err := pump.Slots().Activate(id); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, pump.Slots().Active())
	})
	mux.HandleFunc("/slots/assign", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "bad slot id", http.StatusBadRequest)
			return
		}
		symbol := r.URL.Query().Get("symbol")
		timeframe := r.URL.Query().Get("timeframe")
		if err := pump.Slots().Assign(id, symbol, timeframe); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, pump.Slots().Slots())
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pump.Store().Orders())
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pump.Store().Positions())
	})
	mux.HandleFunc("/executions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pump.Store().Executions(100))
	})

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		observ.Log("control_listening", map[string]any{"addr": cfg.MetricsAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observ.Warn("control_server_failed", map[string]any{"error": err.Error()})
		}
	}()

	err := pump.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		observ.Warn("pump_exited", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func evaluateNow(pump *app.Pump, symbol string) gate.Result {
	ch, ok := pump.ChainSnapshot(symbol)
	if !ok {
		return pump.Evaluator().Evaluate(time.Now(), symbol, nil, pump.Store().Flags())
	}
	return pump.Evaluator().Evaluate(time.Now(), symbol, &ch, pump.Store().Flags())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
