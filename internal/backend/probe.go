package backend

import (
	"context"
	"sync"
)

// Probe reports what the user is doing right now. Detecting the focused
// window and measuring input idleness are platform work that lives outside
// this module; the backend only serves whatever the probe reports.
type Probe interface {
	CurrentApp(ctx context.Context) (app string, ok bool, err error)
	IdleSeconds(ctx context.Context) (uint64, error)
}

// NullProbe never sees a foreground app and is never idle.
type NullProbe struct{}

func (NullProbe) CurrentApp(context.Context) (string, bool, error) { return "", false, nil }
func (NullProbe) IdleSeconds(context.Context) (uint64, error)      { return 0, nil }

// ManualProbe reports values set through Set, e.g. from the debug endpoint.
type ManualProbe struct {
	mu   sync.RWMutex
	app  string
	has  bool
	idle uint64
}

// Set replaces the reported state. An empty app means nothing is focused.
func (p *ManualProbe) Set(app string, idle uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.app, p.has, p.idle = app, app != "", idle
}

func (p *ManualProbe) CurrentApp(context.Context) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.app, p.has, nil
}

func (p *ManualProbe) IdleSeconds(context.Context) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.idle, nil
}
