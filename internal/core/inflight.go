package core

import "sync"

// Inflight tracks jobs that have left the pending queue but not yet reached
// the completed queue, mapping job id to the device running it.
type Inflight struct {
	mu      sync.RWMutex
	devices map[uint64]string
}

func NewInflight() *Inflight {
	return &Inflight{devices: make(map[uint64]string)}
}

// Device returns the device running job id.
func (f *Inflight) Device(id uint64) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.devices[id]
	return d, ok
}

func (f *Inflight) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.devices)
}

func (f *Inflight) add(id uint64, device string) {
	f.mu.Lock()
	f.devices[id] = device
	f.mu.Unlock()
}

func (f *Inflight) remove(id uint64) {
	f.mu.Lock()
	delete(f.devices, id)
	f.mu.Unlock()
}
