// Package api implements the HTTP REST API and Prometheus metrics endpoint
// for a loaded session configuration.
package api

import "github.com/psaab/metconf/pkg/config"

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse holds store status information.
type StatusResponse struct {
	Uptime       string `json:"uptime"`
	Path         string `json:"path"`
	ConfigLoaded bool   `json:"config_loaded"`
	Generation   string `json:"generation,omitempty"`
	Daemons      int    `json:"daemons"`
	Processes    int    `json:"processes"`
	Visis        int    `json:"visis"`
	Tunables     int    `json:"tunables"`
	Loads        uint64 `json:"loads"`
	Failures     uint64 `json:"failures"`
	LastError    string `json:"last_error,omitempty"`
	History      int    `json:"history"`
	HistoryLimit int    `json:"history_limit"`
}

// HistoryInfo describes one recorded load.
type HistoryInfo struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Time      string `json:"time"`
	Path      string `json:"path"`
	Active    bool   `json:"active"`
	Daemons   int    `json:"daemons"`
	Processes int    `json:"processes"`
	Visis     int    `json:"visis"`
	Tunables  int    `json:"tunables"`
}

// LoadError is the payload of a failed reload.
type LoadError struct {
	Stage  string `json:"stage"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Error  string `json:"error"`
}

// RollbackRequest selects the load to reactivate, either by position
// (0 = most recent) or by generation id. ID wins when both are set.
type RollbackRequest struct {
	N  int    `json:"n"`
	ID string `json:"id,omitempty"`
}

// TextOutput wraps rendered configuration text.
type TextOutput struct {
	Output string `json:"output"`
}

// EventEntry is a load event as served by the API.
type EventEntry struct {
	Time       string `json:"time"`
	Type       string `json:"type"`
	Path       string `json:"path,omitempty"`
	Generation string `json:"generation,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
	Daemons    int    `json:"daemons"`
	Processes  int    `json:"processes"`
	Visis      int    `json:"visis"`
	Tunables   int    `json:"tunables"`
}

// descriptor lists in declaration order

func daemonList(cs *config.ConfigSet) []config.DaemonDescriptor {
	out := make([]config.DaemonDescriptor, 0, cs.Len(config.KindDaemon))
	for _, n := range cs.DaemonNames() {
		d, _ := cs.Daemon(n)
		out = append(out, d)
	}
	return out
}

func processList(cs *config.ConfigSet) []config.ProcessDescriptor {
	out := make([]config.ProcessDescriptor, 0, cs.Len(config.KindProcess))
	for _, n := range cs.ProcessNames() {
		p, _ := cs.Process(n)
		out = append(out, p)
	}
	return out
}

func visiList(cs *config.ConfigSet) []config.VisiDescriptor {
	out := make([]config.VisiDescriptor, 0, cs.Len(config.KindVisi))
	for _, n := range cs.VisiNames() {
		v, _ := cs.Visi(n)
		out = append(out, v)
	}
	return out
}

func tunableList(cs *config.ConfigSet) []config.TunableDescriptor {
	out := make([]config.TunableDescriptor, 0, cs.Len(config.KindTunable))
	for _, n := range cs.TunableNames() {
		t, _ := cs.Tunable(n)
		out = append(out, t)
	}
	return out
}
