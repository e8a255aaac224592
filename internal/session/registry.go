package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	ctrl *Controller
	// release suelta la referencia que la sesión toma al crearse (nil si está en background)
	release func()
	// último request o stream que tocó la sesión
	lastSeen time.Time
}

// Registry mapea ids de sesión a Controllers. Las sesiones abandonadas se
// pasan a background y luego se cierran según Options.IdleTimeout.
type Registry struct {
	store Store
	opts  Options
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(store Store, opts Options) *Registry {
	r := &Registry{
		store:    store,
		opts:     opts.withDefaults(),
		now:      time.Now,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
	if r.opts.IdleTimeout > 0 {
		go r.reap()
	}
	return r
}

// Create abre una sesión nueva, ya en primer plano.
func (r *Registry) Create() *Controller {
	id := uuid.NewString()
	ctrl := NewController(id, r.store, r.opts)
	e := &entry{ctrl: ctrl, release: ctrl.Attach(), lastSeen: r.now()}

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	r.opts.Metrics.SessionOpened()
	r.opts.Logger.Info("session opened", map[string]any{"session_id": id})
	return ctrl
}

// Get devuelve la sesión y la marca como activa.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Foreground vuelve a tomar la referencia de la sesión. Idempotente.
func (r *Registry) Foreground(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.lastSeen = r.now()
	if e.release == nil {
		e.release = e.ctrl.Attach()
	}
	return nil
}

// Background suelta la referencia; arranca la ventana de gracia si no queda
// ningún otro observador. Idempotente.
func (r *Registry) Background(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.lastSeen = r.now()
	if e.release != nil {
		e.release()
		e.release = nil
	}
	return nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	e.ctrl.Close()
	r.opts.Metrics.SessionClosed()
	return nil
}

// CloseAll cierra todas las sesiones (shutdown del server).
func (r *Registry) CloseAll() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.ctrl.Close()
		r.opts.Metrics.SessionClosed()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// -------------------------
// Sesiones inactivas
// -------------------------

func (r *Registry) reap() {
	interval := r.opts.IdleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reapIdle()
		}
	}
}

// reapIdle pasa a background las sesiones sin actividad en IdleTimeout y
// cierra las que llevan el doble. Un stream abierto cuenta como actividad.
func (r *Registry) reapIdle() {
	now := r.now()
	idle := r.opts.IdleTimeout
	var expired []*entry

	r.mu.Lock()
	for id, e := range r.sessions {
		leases := 0
		if e.release != nil {
			leases = 1
		}
		if e.ctrl.Attached() > leases {
			e.lastSeen = now
			continue
		}

		since := now.Sub(e.lastSeen)
		if since >= 2*idle {
			if e.release != nil {
				e.release()
				e.release = nil
			}
			delete(r.sessions, id)
			expired = append(expired, e)
			continue
		}
		if since >= idle && e.release != nil {
			e.release()
			e.release = nil
			r.opts.Logger.Debug("idle session moved to background", map[string]any{"session_id": id})
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.ctrl.Close()
		r.opts.Metrics.SessionClosed()
		r.opts.Logger.Info("idle session closed", map[string]any{"session_id": e.ctrl.ID()})
	}
}
