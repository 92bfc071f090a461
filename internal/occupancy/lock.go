package occupancy

import (
	"hash/maphash"
	"sync"
)

const lockStripes = 64

// plateLocks serializes transitions for the same plate inside this process
// so that their events are published in commit order. Different plates
// mostly land on different stripes.
type plateLocks struct {
	seed    maphash.Seed
	stripes [lockStripes]sync.Mutex
}

func newPlateLocks() *plateLocks {
	return &plateLocks{seed: maphash.MakeSeed()}
}

// lock acquires the stripe for plate and returns its unlock function.
func (l *plateLocks) lock(plate string) func() {
	m := &l.stripes[maphash.String(l.seed, plate)%lockStripes]
	m.Lock()
	return m.Unlock
}
