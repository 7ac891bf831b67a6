package forms

import "sync"

// InFlight tracks outstanding submissions so a form cannot be submitted twice
// for the same session while the first request is still running.
type InFlight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{active: make(map[string]struct{})}
}

// Begin marks form as in flight for sessionID. When ok is false another
// submission is outstanding and the caller must reject the request. The
// returned release func must be called once the submission finishes.
func (f *InFlight) Begin(sessionID, form string) (release func(), ok bool) {
	key := sessionID + "\x00" + form

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.active[key]; busy {
		return func() {}, false
	}
	f.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.active, key)
			f.mu.Unlock()
		})
	}, true
}
