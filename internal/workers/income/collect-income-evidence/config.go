// internal/workers/income/collect-income-evidence/config.go
package collectincomeevidence

import (
	"time"

	"bankruptcy-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Config{Timeout: timeout}
}
