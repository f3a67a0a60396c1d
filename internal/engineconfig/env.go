// Package engineconfig loads the process-level settings that aren't part
// of any one cluster's Context: log level, event queue capacity, and the
// engine's default timeouts/tick intervals, the way
// cmd/traffic/cmd/manager/envconfig.go loads the traffic-manager's Env.
package engineconfig

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Env is the engine's process-wide configuration, read once at startup.
type Env struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`

	EventQueueCapacity int `env:"EVENT_QUEUE_CAPACITY,default=256"`

	ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT,default=3s"`
	SupervisorTick   time.Duration `env:"SUPERVISOR_TICK,default=1s"`
	ConnectivityTick time.Duration `env:"CONNECTIVITY_TICK,default=10s"`
}

// Load reads Env from the process environment, applying the defaults
// above for anything unset.
func Load(ctx context.Context) (Env, error) {
	var env Env
	err := envconfig.Process(ctx, &env)
	return env, err
}
