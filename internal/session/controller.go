package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/logger"
)

const (
	DefaultGrace       = 5 * time.Second
	DefaultIdleTimeout = 30 * time.Minute
)

const (
	msgGenericFailure = "the operation could not be completed, please try again"
	msgLoadFailure    = "the patient list could not be loaded, please try again"
)

// Store es lo que el Controller necesita de la capa de acceso (*patients.Service).
type Store interface {
	Watch(ctx context.Context) <-chan patients.Listing
	Insert(ctx context.Context, p patients.Patient) (patients.Patient, error)
	Update(ctx context.Context, p patients.Patient) error
	Delete(ctx context.Context, p patients.Patient) error
	GetByID(ctx context.Context, id int64) (patients.Patient, error)
	ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (bool, error)
}

type Metrics interface {
	Mutation(op, result string)
	SessionOpened()
	SessionClosed()
}

type nopMetrics struct{}

func (nopMetrics) Mutation(string, string) {}
func (nopMetrics) SessionOpened()          {}
func (nopMetrics) SessionClosed()          {}

// Resultados reportados a Metrics.Mutation.
const (
	resultOK        = "ok"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

type Options struct {
	// Grace <= 0 usa DefaultGrace.
	Grace time.Duration

	// IdleTimeout: sin requests ni streams durante este lapso la sesión pasa a
	// background; tras el doble se cierra. 0 usa DefaultIdleTimeout, < 0 lo desactiva.
	IdleTimeout time.Duration

	Logger  logger.Logger
	Metrics Metrics
}

func (o Options) withDefaults() Options {
	if o.Grace <= 0 {
		o.Grace = DefaultGrace
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return o
}

type job struct {
	op  string
	run func(ctx context.Context)
}

// Controller es el estado de una sesión de presentación. Los intents que solo
// tocan celdas se aplican en el acto; las escrituras van a una cola que consume
// un único worker, en el orden en que llegaron.
type Controller struct {
	id      string
	store   Store
	log     logger.Logger
	metrics Metrics
	grace   time.Duration

	mu      sync.Mutex
	cells   cells
	listing listing
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int

	attached    int
	watchGen    uint64
	watchCancel context.CancelFunc
	graceTimer  *time.Timer
	graceSeq    uint64

	queue      []job
	wake       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	workerDone chan struct{}
}

func NewController(id string, store Store, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:         id,
		store:      store,
		log:        opts.Logger.With(map[string]any{"session_id": id}),
		metrics:    opts.Metrics,
		grace:      opts.Grace,
		subs:       make(map[int]chan Snapshot),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		workerDone: make(chan struct{}),
	}
	c.snap = reconcile(c.listing, c.cells, 0)

	go c.worker()
	return c
}

func (c *Controller) ID() string { return c.id }

// Snapshot devuelve el último snapshot publicado.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe emite el snapshot actual y luego cada snapshot nuevo hasta que ctx
// termina o la sesión se cierra. Un consumidor lento solo ve el último.
func (c *Controller) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	ch <- c.snap
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.ctx.Done():
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}()

	return ch
}

// -------------------------
// Suscripción al listado
// -------------------------

// Attach marca un observador activo. Mientras haya al menos uno, el Controller
// está suscripto al listado en vivo. detach es idempotente.
func (c *Controller) Attach() (detach func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	c.attached++
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
		c.graceSeq++
	}
	if c.watchCancel == nil {
		c.startWatchLocked()
	}

	var once sync.Once
	return func() { once.Do(c.detach) }
}

func (c *Controller) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.attached == 0 {
		return
	}
	c.attached--
	if c.attached > 0 {
		return
	}

	// ventana de gracia: si nadie vuelve a tiempo se suelta la suscripción
	c.graceSeq++
	seq := c.graceSeq
	c.graceTimer = time.AfterFunc(c.grace, func() { c.expire(seq) })
}

func (c *Controller) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.attached > 0 || seq != c.graceSeq || c.watchCancel == nil {
		return
	}
	c.watchCancel()
	c.watchCancel = nil
	c.watchGen++ // descarta emisiones rezagadas de la suscripción vieja
	c.graceTimer = nil
	c.log.Debug("listing subscription released", nil)
}

func (c *Controller) startWatchLocked() {
	ctx, cancel := context.WithCancel(c.ctx)
	c.watchGen++
	gen := c.watchGen
	c.watchCancel = cancel

	ch := c.store.Watch(ctx)
	go func() {
		for l := range ch {
			c.applyListing(gen, l)
		}
	}()
	c.log.Debug("listing subscription started", nil)
}

func (c *Controller) applyListing(gen uint64, l patients.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.watchGen {
		return
	}

	if l.Err != nil {
		c.log.Error("listing query failed", map[string]any{"err": l.Err})
		c.cells.errorMessage = msgLoadFailure
		c.listing.loaded = true
	} else {
		c.listing = listing{items: l.Patients, loaded: true}
	}
	c.publishLocked()
}

// -------------------------
// Intents sobre celdas
// -------------------------

func (c *Controller) SetFilter(f patients.Filter) {
	c.update(func(cl *cells) { cl.filter = copyFilter(f) })
}

func (c *Controller) ClearFilter() {
	c.update(func(cl *cells) { cl.filter = patients.Filter{} })
}

func (c *Controller) OpenFiltersDialog() {
	c.update(func(cl *cells) { cl.showFilters = true })
}

func (c *Controller) DismissFiltersDialog() {
	c.update(func(cl *cells) { cl.showFilters = false })
}

func (c *Controller) OpenAddDialog() {
	c.update(func(cl *cells) {
		cl.showAdd = true
		cl.errorMessage = ""
	})
}

func (c *Controller) DismissAddDialog() {
	c.update(func(cl *cells) {
		cl.showAdd = false
		cl.errorMessage = ""
	})
}

func (c *Controller) RequestDelete(p patients.Patient) {
	c.update(func(cl *cells) {
		cl.toDelete = &p
		cl.showDelete = true
	})
}

func (c *Controller) CancelDelete() {
	c.update(clearDelete)
}

func (c *Controller) RequestEdit(p patients.Patient) {
	c.update(func(cl *cells) {
		cl.toEdit = &p
		cl.showEdit = true
		cl.errorMessage = ""
	})
}

func (c *Controller) DismissEdit() {
	c.update(func(cl *cells) {
		clearEdit(cl)
		cl.errorMessage = ""
	})
}

func clearDelete(cl *cells) {
	cl.showDelete = false
	cl.toDelete = nil
}

func clearEdit(cl *cells) {
	cl.showEdit = false
	cl.toEdit = nil
}

// -------------------------
// Intents que escriben
// -------------------------

// AddPatient rechaza el alta si ya existe la terna (apellido, nombre, fecha).
func (c *Controller) AddPatient(f patients.Fields) {
	candidate := f.ToPatient(0)

	c.enqueue("add", func(ctx context.Context) {
		exists, err := c.store.ExistsByNameAndBirthdate(ctx, candidate.FamilyName, candidate.GivenName, candidate.BirthDate)
		if err != nil {
			c.fail(ctx, "add", err)
			return
		}
		if exists {
			c.reject("add", duplicateAddMessage(candidate))
			return
		}

		saved, err := c.store.Insert(ctx, candidate)
		if err != nil {
			c.fail(ctx, "add", err)
			return
		}

		c.succeed("add", saved.ID, func(cl *cells) {
			cl.showAdd = false
			cl.errorMessage = ""
		})
	})
}

// UpdatePatient acepta la terna duplicada solo si pertenece al mismo registro.
func (c *Controller) UpdatePatient(id int64, f patients.Fields) {
	candidate := f.ToPatient(id)

	c.enqueue("update", func(ctx context.Context) {
		exists, err := c.store.ExistsByNameAndBirthdate(ctx, candidate.FamilyName, candidate.GivenName, candidate.BirthDate)
		if err != nil {
			c.fail(ctx, "update", err)
			return
		}
		if exists {
			current, err := c.store.GetByID(ctx, id)
			switch {
			case err == nil && patients.SameIdentity(current, candidate):
				// es el mismo registro
			case err == nil || errors.Is(err, patients.ErrNotFound):
				c.reject("update", duplicateUpdateMessage(candidate))
				return
			default:
				c.fail(ctx, "update", err)
				return
			}
		}

		if err := c.store.Update(ctx, candidate); err != nil {
			c.fail(ctx, "update", err)
			return
		}

		c.succeed("update", id, func(cl *cells) {
			// el usuario pudo haber abierto la edición de otro registro mientras tanto
			if cl.toEdit != nil && cl.toEdit.ID != id {
				return
			}
			clearEdit(cl)
			cl.errorMessage = ""
		})
	})
}

// ConfirmDelete borra el candidato registrado. Sin candidato solo cierra la confirmación.
func (c *Controller) ConfirmDelete() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cells.toDelete == nil {
		clearDelete(&c.cells)
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	target := *c.cells.toDelete
	c.mu.Unlock()

	c.enqueue("delete", func(ctx context.Context) {
		if err := c.store.Delete(ctx, target); err != nil {
			c.fail(ctx, "delete", err)
			return
		}
		c.succeed("delete", target.ID, func(cl *cells) {
			// solo cierra la confirmación si sigue siendo la de este registro
			if cl.toDelete != nil && cl.toDelete.ID != target.ID {
				return
			}
			clearDelete(cl)
		})
	})
}

func duplicateAddMessage(p patients.Patient) string {
	return fmt.Sprintf(
		"patient already exists: a record with family name (%s), given name (%s) and birth date (%s) is already registered",
		strings.TrimSpace(p.FamilyName), strings.TrimSpace(p.GivenName), patients.FormatDate(p.BirthDate),
	)
}

func duplicateUpdateMessage(p patients.Patient) string {
	return fmt.Sprintf(
		"another patient with family name (%s), given name (%s) and birth date (%s) already exists",
		strings.TrimSpace(p.FamilyName), strings.TrimSpace(p.GivenName), patients.FormatDate(p.BirthDate),
	)
}

func (c *Controller) succeed(op string, patientID int64, fn func(*cells)) {
	c.metrics.Mutation(op, resultOK)
	c.update(fn)
	c.log.Info("patient "+op+" committed", map[string]any{"op": op, "patient_id": patientID})
}

func (c *Controller) reject(op, msg string) {
	c.metrics.Mutation(op, resultDuplicate)
	c.update(func(cl *cells) { cl.errorMessage = msg })
	c.log.Warn("duplicate patient rejected", map[string]any{"op": op})
}

// fail deja el diálogo como está y muestra un mensaje genérico.
func (c *Controller) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		// la sesión se está cerrando
		return
	}
	c.metrics.Mutation(op, resultError)
	c.update(func(cl *cells) { cl.errorMessage = msgGenericFailure })
	c.log.Error("patient "+op+" failed", map[string]any{"op": op, "err": err})
}

// -------------------------
// Estado y worker
// -------------------------

func (c *Controller) update(fn func(*cells)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fn(&c.cells)
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	c.snap = reconcile(c.listing, c.cells, c.snap.Version+1)
	for _, ch := range c.subs {
		sendLatest(ch, c.snap)
	}
}

// sendLatest reemplaza lo pendiente en ch. Se llama con c.mu tomado.
func sendLatest(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (c *Controller) enqueue(op string, run func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug("intent ignored on closed session", map[string]any{"op": op})
		return
	}
	c.queue = append(c.queue, job{op: op, run: run})
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) worker() {
	defer close(c.workerDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if c.closed || len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			j := c.queue[0]
			c.queue[0] = job{}
			c.queue = c.queue[1:]
			c.mu.Unlock()

			j.run(c.ctx)
		}
	}
}

// Close suelta la suscripción, cierra los streams y detiene el worker.
// Las escrituras pendientes se descartan.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	dropped := len(c.queue)
	c.queue = nil
	c.mu.Unlock()

	c.cancel()
	<-c.workerDone
	c.log.Info("session closed", map[string]any{"dropped_intents": dropped})
}

// -------------------------
// Introspección (tests y handlers)
// -------------------------

func (c *Controller) Attached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Subscribed indica si hay una suscripción viva al listado.
func (c *Controller) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watchCancel != nil
}
