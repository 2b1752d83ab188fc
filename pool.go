package sodium

import "sync"

// ScratchPool reuses the scratch slices allocated once per transaction
// drain or collection cycle: the changed-nodes queue, the pre-post/post
// callback slices, and the GC roots buffer.
type ScratchPool struct {
	changedPool  sync.Pool
	callbackPool sync.Pool
	rootsPool    sync.Pool

	metrics PoolMetrics
}

// PoolMetrics tracks pool hit/miss counts for each scratch kind.
type PoolMetrics struct {
	mu                  sync.RWMutex
	changedHits         uint64
	changedMisses       uint64
	callbackHits        uint64
	callbackMisses      uint64
	rootsHits           uint64
	rootsMisses         uint64
}

// NewScratchPool creates a pool with pre-sized backing arrays.
func NewScratchPool() *ScratchPool {
	p := &ScratchPool{}
	p.changedPool.New = func() any { return make([]*Node, 0, 16) }
	p.callbackPool.New = func() any { return make([]func(), 0, 8) }
	p.rootsPool.New = func() any { return make([]*GcNode, 0, 8) }
	return p
}

// AcquireChanged returns a zero-length []*Node with reused capacity.
func (p *ScratchPool) AcquireChanged() []*Node {
	s := p.changedPool.Get().([]*Node)
	p.metrics.mu.Lock()
	if cap(s) > 0 {
		p.metrics.changedHits++
	} else {
		p.metrics.changedMisses++
	}
	p.metrics.mu.Unlock()
	return s[:0]
}

// ReleaseChanged returns a slice to the pool.
func (p *ScratchPool) ReleaseChanged(s []*Node) {
	if s == nil {
		return
	}
	p.changedPool.Put(s[:0])
}

// AcquireCallbacks returns a zero-length []func() with reused capacity.
func (p *ScratchPool) AcquireCallbacks() []func() {
	s := p.callbackPool.Get().([]func())
	p.metrics.mu.Lock()
	if cap(s) > 0 {
		p.metrics.callbackHits++
	} else {
		p.metrics.callbackMisses++
	}
	p.metrics.mu.Unlock()
	return s[:0]
}

// ReleaseCallbacks returns a slice to the pool.
func (p *ScratchPool) ReleaseCallbacks(s []func()) {
	if s == nil {
		return
	}
	p.callbackPool.Put(s[:0])
}

// AcquireRoots returns a zero-length []*GcNode with reused capacity.
func (p *ScratchPool) AcquireRoots() []*GcNode {
	s := p.rootsPool.Get().([]*GcNode)
	p.metrics.mu.Lock()
	if cap(s) > 0 {
		p.metrics.rootsHits++
	} else {
		p.metrics.rootsMisses++
	}
	p.metrics.mu.Unlock()
	return s[:0]
}

// ReleaseRoots returns a slice to the pool.
func (p *ScratchPool) ReleaseRoots(s []*GcNode) {
	if s == nil {
		return
	}
	p.rootsPool.Put(s[:0])
}

// Metrics returns a copy of the current pool hit/miss counters.
func (p *ScratchPool) Metrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolMetrics{
		changedHits:    p.metrics.changedHits,
		changedMisses:  p.metrics.changedMisses,
		callbackHits:   p.metrics.callbackHits,
		callbackMisses: p.metrics.callbackMisses,
		rootsHits:      p.metrics.rootsHits,
		rootsMisses:    p.metrics.rootsMisses,
	}
}
