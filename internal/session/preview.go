package session

import "sync"

// Artifact is the scoped handle to one rendered preview. DraftVersion
// remembers which draft revision it was rendered from, so a consumer can
// tell whether the bytes are stale.
type Artifact struct {
	Data         []byte
	DraftVersion uint64

	released bool
}

// release drops the artifact's payload. Safe to call more than once.
func (a *Artifact) release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	a.Data = nil
}

// PreviewSlot holds at most one live preview artifact per session. Replacing
// or clearing always releases the previous handle first, so nothing leaks
// and a superseded artifact can never be published. All artifact state is
// touched only under the slot mutex; readers get copies.
type PreviewSlot struct {
	mu     sync.Mutex
	handle *Artifact
	sealed bool
}

// Install stores a new artifact, releasing the previous one first. A sealed
// slot releases the incoming artifact instead: an install racing session
// teardown must not resurrect the slot.
func (p *PreviewSlot) Install(a *Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sealed {
		a.release()
		return
	}

	p.handle.release()
	p.handle = a
}

// Clear releases the current artifact and seals the slot for the rest of the
// session's life. Only teardown clears; there is no reopen.
func (p *PreviewSlot) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handle.release()
	p.handle = nil
	p.sealed = true
}

// Peek returns a copy of the current artifact, or nil. The copy stays
// readable even if the slot releases the original concurrently; the bytes
// themselves are never mutated.
func (p *PreviewSlot) Peek() *Artifact {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil
	}

	view := *p.handle
	return &view
}
