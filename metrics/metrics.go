package metrics

import "time"

// Recorder receives operational measurements from gateway operations.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	AddCounter(name string, n float64, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
