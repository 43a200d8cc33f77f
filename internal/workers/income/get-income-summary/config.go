// internal/workers/income/get-income-summary/config.go
package getincomesummary

import (
	"time"

	"bankruptcy-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// RequireComputed fails the job when the case was never reconciled
	// instead of completing with incomeComputed=false.
	RequireComputed bool
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout}
}
