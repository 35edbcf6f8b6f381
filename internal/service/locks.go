package service

import "sync"

const lockStripes = 64

// userLocks serialises work per user id. Distinct ids may share a stripe.
type userLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *userLocks) lock(id int64) (unlock func()) {
	m := &l.stripes[uint64(id)%lockStripes]
	m.Lock()
	return m.Unlock
}
