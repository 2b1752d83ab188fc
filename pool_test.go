package sodium

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScratchPoolAcquireReleaseRoundTrips(t *testing.T) {
	p := NewScratchPool()

	changed := p.AcquireChanged()
	require.Len(t, changed, 0)
	changed = append(changed, NewNode(func() {}, nil))
	p.ReleaseChanged(changed)

	reused := p.AcquireChanged()
	require.Len(t, reused, 0)
	require.GreaterOrEqual(t, cap(reused), 1)
}

func TestScratchPoolMetricsCountHitsAndMisses(t *testing.T) {
	p := NewScratchPool()

	before := p.Metrics()
	cb := p.AcquireCallbacks()
	p.ReleaseCallbacks(cb)
	_ = p.AcquireCallbacks()

	after := p.Metrics()
	totalBefore := before.callbackHits + before.callbackMisses
	totalAfter := after.callbackHits + after.callbackMisses
	require.Greater(t, totalAfter, totalBefore)
}

func TestScratchPoolReleaseNilIsANoOp(t *testing.T) {
	p := NewScratchPool()
	require.NotPanics(t, func() {
		p.ReleaseChanged(nil)
		p.ReleaseCallbacks(nil)
		p.ReleaseRoots(nil)
	})
}
