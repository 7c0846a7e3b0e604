package av1

// refState is the reference slot map. Slot updates are staged while
// the frame header is parsed and only published once the whole frame
// decodes, so a failed frame never damages the map.
type refState struct {
	pool *bufferPool

	slots [numRefFrames]*frameBuffer
	next  [numRefFrames]*frameBuffer

	staged      bool
	refreshMask uint8
}

func newRefState(pool *bufferPool) *refState {
	return &refState{pool: pool}
}

// resolve returns the buffer in a slot, failing on slots nothing has
// populated yet. Inter frames naming such a slot are corrupt, not
// crashes.
func (rs *refState) resolve(slot int) (*frameBuffer, error) {
	if slot < 0 || slot >= numRefFrames {
		return nil, corruptf("reference slot %d out of range", slot)
	}
	fb := rs.slots[slot]
	if fb == nil {
		return nil, corruptf("reference slot %d not yet populated", slot)
	}
	return fb, nil
}

// stageRefresh builds the next slot map under the pool lock: every
// bit of mask points its slot at cur, the rest carry over. All
// current slot buffers pick up a transient hold so nothing decoding
// against them can lose its backing store mid-frame.
func (rs *refState) stageRefresh(cur *frameBuffer, mask uint8) {
	rs.pool.mu.Lock()
	defer rs.pool.mu.Unlock()

	for i := 0; i < numRefFrames; i++ {
		if mask&(1<<uint(i)) != 0 {
			rs.next[i] = cur
			cur.refCount++
		} else {
			rs.next[i] = rs.slots[i]
		}
		if rs.slots[i] != nil {
			rs.slots[i].refCount++
		}
	}
	rs.staged = true
	rs.refreshMask = mask
}

// publish commits a staged refresh after a successful decode. Each
// old slot drops the transient hold, and slots being replaced also
// drop the map's own reference to their previous occupant.
func (rs *refState) publish() {
	if !rs.staged {
		return
	}
	rs.pool.mu.Lock()
	defer rs.pool.mu.Unlock()

	for i := 0; i < numRefFrames; i++ {
		old := rs.slots[i]
		if old != nil {
			old.refCount-- // transient hold
			if rs.refreshMask&(1<<uint(i)) != 0 {
				old.refCount-- // map reference of the replaced frame
			}
		}
		rs.slots[i] = rs.next[i]
		rs.next[i] = nil
	}
	rs.staged = false
}

// abort rolls back a staged refresh after a failed decode, dropping
// exactly the references stageRefresh added.
func (rs *refState) abort(cur *frameBuffer) {
	if !rs.staged {
		return
	}
	rs.pool.mu.Lock()
	defer rs.pool.mu.Unlock()

	for i := 0; i < numRefFrames; i++ {
		if rs.refreshMask&(1<<uint(i)) != 0 && cur != nil {
			cur.refCount--
		}
		if rs.slots[i] != nil {
			rs.slots[i].refCount--
		}
		rs.next[i] = nil
	}
	rs.staged = false
}

// saveContext records the adapted entropy state on every buffer the
// decoded frame refreshed, so later frames can seed from it via
// primary_ref_frame.
func (rs *refState) saveContext(mask uint8, fc *FrameContext) {
	for i := 0; i < numRefFrames; i++ {
		if mask&(1<<uint(i)) != 0 && rs.slots[i] != nil {
			rs.slots[i].ctx = fc
		}
	}
}
