package domain

import "sync"

// MutationObserver receives document lifecycle callbacks from an engine.
// Pre callbacks run synchronously before the write commits and may mutate
// the spec or change; post callbacks run after commit and are not awaited by
// the triggering write.
type MutationObserver interface {
	PreCreate(pack string, spec *DocumentSpec, opts MutationOptions)
	PostCreate(pack string, doc Document, opts MutationOptions)
	PreUpdate(pack string, doc Document, change *DocumentChange, opts MutationOptions)
	PostUpdate(pack string, doc Document, change DocumentChange, opts MutationOptions)
	PostDelete(pack string, doc Document, opts MutationOptions)
}

// ObserverHub fans mutation events out to registered observers. Engines
// embed it: pre dispatch runs inline, post dispatch on a tracked goroutine.
type ObserverHub struct {
	mu        sync.RWMutex
	observers []MutationObserver
	wg        sync.WaitGroup
}

// RegisterObserver adds an observer to the hub.
func (h *ObserverHub) RegisterObserver(obs MutationObserver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, obs)
}

// WaitForObservers blocks until all in-flight post dispatches complete.
func (h *ObserverHub) WaitForObservers() {
	h.wg.Wait()
}

func (h *ObserverHub) snapshot() []MutationObserver {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]MutationObserver(nil), h.observers...)
}

// DispatchPreCreate runs pre-create callbacks synchronously.
func (h *ObserverHub) DispatchPreCreate(pack string, spec *DocumentSpec, opts MutationOptions) {
	for _, obs := range h.snapshot() {
		obs.PreCreate(pack, spec, opts)
	}
}

// DispatchPreUpdate runs pre-update callbacks synchronously.
func (h *ObserverHub) DispatchPreUpdate(pack string, doc Document, change *DocumentChange, opts MutationOptions) {
	for _, obs := range h.snapshot() {
		obs.PreUpdate(pack, doc, change, opts)
	}
}

// DispatchPostCreate runs post-create callbacks on a tracked goroutine.
func (h *ObserverHub) DispatchPostCreate(pack string, doc Document, opts MutationOptions) {
	observers := h.snapshot()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for _, obs := range observers {
			obs.PostCreate(pack, doc, opts)
		}
	}()
}

// DispatchPostUpdate runs post-update callbacks on a tracked goroutine.
func (h *ObserverHub) DispatchPostUpdate(pack string, doc Document, change DocumentChange, opts MutationOptions) {
	observers := h.snapshot()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for _, obs := range observers {
			obs.PostUpdate(pack, doc, change, opts)
		}
	}()
}

// DispatchPostDelete runs post-delete callbacks on a tracked goroutine.
func (h *ObserverHub) DispatchPostDelete(pack string, doc Document, opts MutationOptions) {
	observers := h.snapshot()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for _, obs := range observers {
			obs.PostDelete(pack, doc, opts)
		}
	}()
}
