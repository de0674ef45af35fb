package main

import (
	"net/http"

	"admission-gateway/internal/config"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/bytedance/sonic"
)

type health struct {
	env         config.Env
	coordinator interface{ DistributedEnabled() bool }
	memory      interface{ Len() int }
	stats       interface{ Total() infra.Counters }
	concurrency interface{ InFlight() int }
	settings    interface{ LastError() error }
}

type healthBody struct {
	Status      string `json:"status"`
	Env         string `json:"env"`
	RateLimit   string `json:"rateLimit"`
	MemoryKeys  int    `json:"memoryKeys"`
	Allowed     int64  `json:"allowed"`
	Denied      int64  `json:"denied"`
	InFlight    int    `json:"inFlight"`
	ConfigError string `json:"configError,omitempty"`
}

func healthHandler(h health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{
			Status:     "ok",
			Env:        string(h.env),
			RateLimit:  "memory",
			MemoryKeys: h.memory.Len(),
			InFlight:   h.concurrency.InFlight(),
		}
		if h.coordinator.DistributedEnabled() {
			body.RateLimit = "distributed"
		}
		total := h.stats.Total()
		body.Allowed, body.Denied = total.Allowed, total.Denied
		if err := h.settings.LastError(); err != nil {
			body.ConfigError = err.Error()
		}

		out, err := sonic.Marshal(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(out)
	}
}
