package chart

import "sync"

// ListenerID identifies a registered resize listener.
type ListenerID int

// Window dispatches resize events to registered listeners. One Window
// stands for one browser window.
type Window struct {
	mu        sync.Mutex
	listeners map[ListenerID]func(width int)
	next      ListenerID
	width     int
}

// NewWindow creates a window with no listeners.
func NewWindow() *Window {
	return &Window{listeners: make(map[ListenerID]func(int))}
}

// OnResize registers fn and returns its id.
func (w *Window) OnResize(fn func(width int)) ListenerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	w.listeners[w.next] = fn
	return w.next
}

// RemoveListener unregisters id. Unknown ids are ignored.
func (w *Window) RemoveListener(id ListenerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.listeners, id)
}

// Resize records the new width and notifies every listener.
func (w *Window) Resize(width int) {
	w.mu.Lock()
	w.width = width
	fns := make([]func(int), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(width)
	}
}

// Width returns the last width seen by Resize.
func (w *Window) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

// ListenerCount returns the number of registered listeners.
func (w *Window) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}
