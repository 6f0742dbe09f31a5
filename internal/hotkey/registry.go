package hotkey

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

// Binding ties a logical name to a combo and the callback invoked when
// the combo triggers.
type Binding struct {
	Name     string
	Combo    Combo
	Callback func()
}

// Listener is the underlying global key-combination listener. It has no
// incremental update: the registry always stops it and starts it again
// with the full binding set.
type Listener interface {
	// Start begins listening for the given bindings, reporting each
	// trigger by binding name.
	Start(bindings []Binding, onTrigger func(name string)) error

	// Stop halts listening and releases all key grabs.
	Stop()
}

// Registry maintains the name → combo → callback mapping and restarts
// the listener on every mutation so the active grabs always reflect the
// exact current binding set.
type Registry struct {
	mu        sync.Mutex
	listener  Listener
	bindings  map[string]Binding
	started   bool
	dispatch  func(func())
	observers []func(name string)
}

// NewRegistry creates a registry over the given listener. dispatch
// marshals trigger handling onto the application event thread; nil
// runs triggers inline.
func NewRegistry(listener Listener, dispatch func(func())) *Registry {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Registry{
		listener: listener,
		bindings: make(map[string]Binding),
		dispatch: dispatch,
	}
}

// Register adds or replaces a binding and restarts the listener.
func (r *Registry) Register(name string, combo Combo, callback func()) error {
	if combo.IsZero() {
		return fmt.Errorf("empty combo for hotkey %q", name)
	}
	if _, _, err := combo.Split(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = Binding{Name: name, Combo: combo, Callback: callback}
	r.restart()

	logger.WithComponent("hotkey").Info().
		Str("name", name).
		Str("combo", combo.String()).
		Msg("Registered hotkey")
	return nil
}

// Unregister removes a binding and restarts the listener with the
// remaining bindings. Returns false for unknown names.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[name]; !ok {
		return false
	}
	delete(r.bindings, name)
	r.restart()

	logger.WithComponent("hotkey").Info().Str("name", name).Msg("Unregistered hotkey")
	return true
}

// Bindings returns name → canonical combo string for every binding.
func (r *Registry) Bindings() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.bindings))
	for name, b := range r.bindings {
		out[name] = b.Combo.String()
	}
	return out
}

// Combo returns the combo bound under name, if any.
func (r *Registry) Combo(name string) (Combo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[name]
	return b.Combo, ok
}

// Subscribe adds an observer notified with the binding name after each
// trigger's callback has run.
func (r *Registry) Subscribe(fn func(name string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Start begins the registry's active lifetime.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.restart()
}

// Stop halts the listener; bindings are kept for a later Start.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	r.listener.Stop()
}

// restart performs the full stop-then-start listener rebuild. The
// caller holds r.mu.
func (r *Registry) restart() {
	r.listener.Stop()
	if !r.started || len(r.bindings) == 0 {
		return
	}

	bindings := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bindings = append(bindings, b)
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Name < bindings[j].Name })

	if err := r.listener.Start(bindings, r.onTrigger); err != nil {
		logger.WithComponent("hotkey").Error().Err(err).Msg("Failed to start hotkey listener")
	}
}

// onTrigger marshals a trigger onto the event thread, runs the bound
// callback, then notifies observers. The callback always runs first.
func (r *Registry) onTrigger(name string) {
	r.dispatch(func() {
		r.mu.Lock()
		b, ok := r.bindings[name]
		observers := make([]func(string), len(r.observers))
		copy(observers, r.observers)
		r.mu.Unlock()
		if !ok {
			return
		}
		if b.Callback != nil {
			b.Callback()
		}
		for _, obs := range observers {
			obs(name)
		}
	})
}
