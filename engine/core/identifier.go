package core

import (
	"fmt"
	"sync"
)

// Identifiers hands out small integer ids for owners, reusing released ones.
type Identifiers struct {
	mu     sync.Mutex
	owners []interface{}
}

func NewIdentifiers() *Identifiers {
	return &Identifiers{}
}

func (ids *Identifiers) AquireNewID(owner interface{}) uint32 {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if len(ids.owners) == 0 {
		ids.owners = make([]interface{}, 8)
	}
	length := uint32(len(ids.owners))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	// This means the id will be length - 1
	ids.owners = append(ids.owners, owner)
	length = uint32(len(ids.owners))
	return length - 1
}

func (ids *Identifiers) Lookup(id uint32) (interface{}, bool) {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if id >= uint32(len(ids.owners)) || ids.owners[id] == nil {
		return nil, false
	}
	return ids.owners[id], true
}

func (ids *Identifiers) ReleaseID(id uint32) error {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if len(ids.owners) == 0 {
		return fmt.Errorf("release id called before initialization. AquireNewID should have been called first. Nothing was done")
	}

	length := uint32(len(ids.owners))
	if id >= length {
		return fmt.Errorf("release id: id '%d' out of range (max=%d). Nothing was done", id, length)
	}

	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}
