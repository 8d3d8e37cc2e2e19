package visibility

import "sync"

// Feed is an Observer driven by externally reported entries, such as the
// visible ratio sent along with a preview request.
type Feed struct {
	mu        sync.Mutex
	fn        func(Entry)
	target    Rect
	connected bool
}

func (f *Feed) Observe(target Rect, fn func(Entry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
	f.fn = fn
	f.connected = true
}

func (f *Feed) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = nil
	f.connected = false
}

// Connected reports whether an observation is active.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Push delivers e to the current callback, if connected.
func (f *Feed) Push(e Entry) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// PushViewport delivers the intersection of the observed target with viewport.
func (f *Feed) PushViewport(viewport Rect) {
	f.mu.Lock()
	target := f.target
	f.mu.Unlock()
	f.Push(EntryFor(target, viewport))
}

// Registry keeps one gate per document id.
type Registry struct {
	threshold float64

	mu    sync.Mutex
	gates map[string]*registered
}

type registered struct {
	gate *Gate
	feed *Feed
}

func NewRegistry(threshold float64) *Registry {
	return &Registry{threshold: threshold, gates: make(map[string]*registered)}
}

// Report feeds a visible ratio for id and returns the document's gate.
func (r *Registry) Report(id string, ratio float64) *Gate {
	r.mu.Lock()
	reg, ok := r.gates[id]
	if !ok {
		reg = &registered{gate: NewGate(r.threshold), feed: &Feed{}}
		reg.gate.Attach(reg.feed, Rect{Width: 1, Height: 1})
		r.gates[id] = reg
	}
	r.mu.Unlock()

	reg.feed.Push(Entry{Ratio: ratio})
	return reg.gate
}

// Forget drops the gate for id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	reg, ok := r.gates[id]
	delete(r.gates, id)
	r.mu.Unlock()
	if ok {
		reg.gate.Close()
	}
}
