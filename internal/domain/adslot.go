package domain

// SlotState is the lifecycle state of one ad slot position.
type SlotState string

const (
	SlotUnloaded SlotState = "unloaded"
	SlotLoading  SlotState = "loading"
	SlotLoaded   SlotState = "loaded"

	// SlotFailed is terminal for the session: a position whose load failed
	// is never retried, so a systematically failing ad source cannot cause
	// load thrash. Recovery is a full refresh.
	SlotFailed SlotState = "failed"
)

// SlotWindows holds the preload/unload distances, in feed items, around the
// current viewport position.
type SlotWindows struct {
	PreloadDistance int
	UnloadDistance  int
}

// Valid reports whether the windows provide hysteresis. Preload must be
// strictly inside unload, otherwise a slot unloaded at the boundary would be
// reloaded by the next one-item jitter.
func (w SlotWindows) Valid() bool {
	return w.PreloadDistance >= 0 && w.PreloadDistance < w.UnloadDistance
}

// SlotTransitions is the outcome of evaluating one position change:
// positions to start loading and positions to release.
type SlotTransitions struct {
	ToLoad   []int
	ToUnload []int
}

// ComputeSlotTransitions decides, purely from current slot states, which
// positions must load and which must unload for the given viewport position.
//
// A slot enters ToLoad when it lies within the preload window and is
// Unloaded. Loading/Loaded slots are left alone (idempotence) and Failed
// slots are never revisited. A slot enters ToUnload when its distance
// exceeds the unload window and it still holds (or is acquiring) an
// instance. Side effects are the caller's job; keeping this pure makes the
// windowing deterministic under test.
func ComputeSlotTransitions(position int, states map[int]SlotState, w SlotWindows) SlotTransitions {
	t := SlotTransitions{}
	for pos, state := range states {
		distance := pos - position
		if distance < 0 {
			distance = -distance
		}

		switch {
		case distance <= w.PreloadDistance && state == SlotUnloaded:
			t.ToLoad = append(t.ToLoad, pos)
		case distance > w.UnloadDistance && (state == SlotLoaded || state == SlotLoading):
			t.ToUnload = append(t.ToUnload, pos)
		}
	}

	return t
}
