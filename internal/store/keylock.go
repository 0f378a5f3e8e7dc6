// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package store

import "sync"

// keyLocks hands out one mutex per key so effective writes are serialized
// per observation id or per (event,user) pair, never globally.
type keyLocks struct {
	locks sync.Map
}

// acquire locks and returns the mutex for the key.
func (k *keyLocks) acquire(key string) *sync.Mutex {
	muInterface, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := muInterface.(*sync.Mutex)
	mu.Lock()
	return mu
}

// release unlocks the mutex returned by acquire.
func (k *keyLocks) release(mu *sync.Mutex) {
	mu.Unlock()
}
