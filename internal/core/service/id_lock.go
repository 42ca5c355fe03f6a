package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const idLockStripes = 256

// idLock serializes work on a single quote id. Ids hash onto a fixed set of
// mutexes, so unrelated ids occasionally share a stripe.
type idLock struct {
	stripes [idLockStripes]sync.Mutex
}

func (l *idLock) Lock(id string) (unlock func()) {
	m := &l.stripes[xxhash.Sum64String(id)%idLockStripes]
	m.Lock()
	return m.Unlock
}
