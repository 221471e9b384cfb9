package stamp

// QueueInfo is what the layer learned about a queue when it was obtained.
type QueueInfo struct {
	Family uint32
	Index  uint32
}

// QueueIndexMap maps queue handles to the family they were obtained from.
type QueueIndexMap map[Queue]QueueInfo

// Family returns the family of queue, and false when the queue was never reported.
func (m QueueIndexMap) Family(queue Queue) (uint32, bool) {
	info, ok := m[queue]
	return info.Family, ok
}

// FamilySupport records which queue families can run compute work.
type FamilySupport map[uint32]bool

// Compute reports whether family can run the stamp dispatch. Families never
// reported are assumed to.
func (m FamilySupport) Compute(family uint32) bool {
	compute, known := m[family]
	return compute || !known
}

// FrameCounter produces the rotating frame index pushed to the stamp shader.
type FrameCounter struct {
	value uint32
}

// Next advances the counter and returns the new value in [0, FrameModulus).
func (fc *FrameCounter) Next() uint32 {
	fc.value = (fc.value + 1) % FrameModulus
	return fc.value
}

// Current returns the last value handed out.
func (fc *FrameCounter) Current() uint32 {
	return fc.value
}
