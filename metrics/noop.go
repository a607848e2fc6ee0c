package metrics

import "time"

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) AddCounter(string, float64, map[string]string)           {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
