package api

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

var headerColor = color.New(color.FgBlue)

type summaryKey struct {
	protocol string
	phase    string
	version  string
}

// Summary is a FlowSender which counts flows per protocol, TLS phase and version instead of writing them out.
// Connections are counted once, by their last reported flow.
type Summary struct {
	mu    sync.Mutex
	conns map[string]summaryKey
	flows int
}

func NewSummary() *Summary {
	return &Summary{conns: make(map[string]summaryKey)}
}

func (s *Summary) SendFlows(ctx context.Context, flows []*Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, flow := range flows {
		s.flows++
		key := fmt.Sprintf("%d-%d %s %s", flow.Pid, flow.Fd, flow.SourceAddr, flow.DestAddr)
		s.conns[key] = summaryKey{protocol: flow.L7Protocol, phase: flow.TLSPhase, version: flow.TLSVersion}
	}
	return nil
}

// Counts returns the number of connections per protocol, keyed "protocol" or "protocol/phase" for TLS
func (s *Summary) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	for _, k := range s.conns {
		name := k.protocol
		if k.phase != "" {
			name += "/" + k.phase
		}
		counts[name]++
	}
	return counts
}

// Render draws the summary as a table, one row per protocol, phase and version.
func (s *Summary) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[summaryKey]int{}
	for _, k := range s.conns {
		counts[k]++
	}

	keys := make([]summaryKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].protocol != keys[j].protocol {
			return keys[i].protocol < keys[j].protocol
		}
		if keys[i].phase != keys[j].phase {
			return keys[i].phase < keys[j].phase
		}
		return keys[i].version < keys[j].version
	})

	t := table.NewWriter()
	t.AppendHeader(table.Row{
		headerColor.Sprint("Protocol"),
		headerColor.Sprint("TLS phase"),
		headerColor.Sprint("TLS version"),
		headerColor.Sprint("Connections"),
	})
	for _, k := range keys {
		t.AppendRow(table.Row{k.protocol, dash(k.phase), dash(k.version), counts[k]})
	}
	t.AppendFooter(table.Row{"", "", "Flows", s.flows})
	t.SetStyle(table.StyleLight)

	return t.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
