package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// errSimTimeout mimics the error a real transport surfaces when the device
// stops answering.
var errSimTimeout = errors.New("Network timed out")

// simDevice is a synthetic Ultimate device: every call costs one latency
// period and fails with the configured probability.
type simDevice struct {
	mu       sync.Mutex
	failRate float64
	latency  time.Duration
	rng      *rand.Rand

	calls    int
	failures int
}

func newSimDevice(failRate float64, latency time.Duration) *simDevice {
	return &simDevice{
		failRate: failRate,
		latency:  latency,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// setFailRate adjusts the failure probability at runtime.
func (d *simDevice) setFailRate(rate float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	d.failRate = rate
}

// stats returns total calls and failures so far.
func (d *simDevice) stats() (calls, failures int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls, d.failures
}

// roll decides whether this call fails, after simulating latency.
func (d *simDevice) roll(ctx context.Context) error {
	d.mu.Lock()
	latency := d.latency
	fail := d.rng.Float64() < d.failRate
	d.calls++
	if fail {
		d.failures++
	}
	d.mu.Unlock()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if fail {
		return errSimTimeout
	}
	return nil
}

// info answers like the device's version endpoint.
func (d *simDevice) info(ctx context.Context) (any, error) {
	if err := d.roll(ctx); err != nil {
		return nil, err
	}
	return map[string]string{
		"product":  "Ultimate 64",
		"firmware": "3.12",
		"core":     "1.44",
	}, nil
}

// configs answers like the device's configuration tree.
func (d *simDevice) configs(ctx context.Context) (any, error) {
	if err := d.roll(ctx); err != nil {
		return nil, err
	}
	return map[string]string{
		"SID Socket 1": "6581",
		"Drive A":      "1541",
		"Drive B":      "disabled",
	}, nil
}

// drives answers like the drive enumeration endpoint.
func (d *simDevice) drives(ctx context.Context) (any, error) {
	if err := d.roll(ctx); err != nil {
		return nil, err
	}
	return []string{"a: 1541 games.d64", "b: empty"}, nil
}

// ftpList answers like an FTP LIST of the given path.
func (d *simDevice) ftpList(ctx context.Context, path string) (any, error) {
	if err := d.roll(ctx); err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("%s/games", path),
		fmt.Sprintf("%s/demos", path),
		fmt.Sprintf("%s/music", path),
	}, nil
}
