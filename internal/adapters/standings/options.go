package standings

import "time"

// Option applies a configuration option to Standings.
type Option func(*Standings)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *Standings) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
