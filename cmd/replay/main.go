// Replays a JSONL event capture through the store and aggregator and
// prints the gate verdict each symbol would have shown at the moment
// of its last event. Useful for post-mortems on captured sessions.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/tknair/confirmdesk/internal/chain"
	"github.com/tknair/confirmdesk/internal/gate"
	"github.com/tknair/confirmdesk/internal/state"
	"github.com/tknair/confirmdesk/internal/wire"
)

func main() {
	path := flag.String("events", "", "path to JSONL event capture")
	mode := flag.String("mode", "paper", "trading mode to assume")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -events <file.jsonl>")
		os.Exit(2)
	}
	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open capture: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	store := state.NewStore(*mode)
	agg := chain.NewAggregator()
	policy := gate.DefaultPolicy()

	var applied, malformed int
	lastTS := map[string]wire.Event{}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev wire.Event
		if err := json.Unmarshal(line, &ev); err != nil || ev.ID == "" || ev.Type == "" {
			malformed++
			continue
		}
		agg.Apply(ev)
		store.Apply(ev)
		applied++
		if ev.Symbol != "" {
			lastTS[ev.Symbol] = ev
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "scan capture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("applied=%d malformed=%d orders=%d positions=%d executions=%d\n",
		applied, malformed, len(store.Orders()), len(store.Positions()), len(store.Executions(0)))

	symbols := make([]string, 0, len(lastTS))
	for s := range lastTS {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		ch, _ := agg.Snapshot(sym)
		res := gate.Evaluate(lastTS[sym].Timestamp, sym, &ch, store.Flags(), policy)
		fmt.Printf("%-8s verdict=%-7s age_class=%-8s countdown_ms=%-5d", sym, res.Verdict, res.AgeClass, res.Countdown.Milliseconds())
		for _, r := range res.Reasons {
			fmt.Printf(" %s", r.Code)
		}
		fmt.Println()
	}
}
