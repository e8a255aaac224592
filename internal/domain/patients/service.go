package patients

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
)

// StoreObserver recibe la duración de cada llamada al store (métricas).
type StoreObserver interface {
	ObserveStore(op string, elapsed time.Duration, err error)
}

// Service es la capa de acceso: delega en el Repository sin reglas propias.
type Service struct {
	repo     Repository
	now      func() time.Time
	observer StoreObserver
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// WithObserver engancha un observador de latencias. nil lo desactiva.
func (s *Service) WithObserver(o StoreObserver) *Service {
	s.observer = o
	return s
}

// WithClock reemplaza el reloj usado para calcular edades.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Now es la fecha actual según el reloj del servicio.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) List(ctx context.Context) (items []Patient, err error) {
	defer s.observe("list", time.Now(), &err)
	return s.repo.List(ctx)
}

func (s *Service) Search(ctx context.Context, filter Filter) (items []Patient, err error) {
	defer s.observe("search", time.Now(), &err)
	return s.repo.Search(ctx, filter)
}

func (s *Service) Insert(ctx context.Context, p Patient) (out Patient, err error) {
	defer s.observe("insert", time.Now(), &err)
	return s.repo.Insert(ctx, p)
}

func (s *Service) Update(ctx context.Context, p Patient) (err error) {
	defer s.observe("update", time.Now(), &err)
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, p Patient) (err error) {
	defer s.observe("delete", time.Now(), &err)
	return s.repo.Delete(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id int64) (p Patient, err error) {
	defer s.observe("get_by_id", time.Now(), &err)
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (ok bool, err error) {
	defer s.observe("exists", time.Now(), &err)
	return s.repo.ExistsByNameAndBirthdate(ctx, familyName, givenName, ToDate(birthDate))
}

// Listing es una emisión del listado en vivo. Err != nil si la consulta falló.
type Listing struct {
	Patients []Patient
	Err      error
}

// Watch emite el listado completo ahora y después de cada cambio en la tabla,
// hasta que ctx termina. Si el consumidor se atrasa solo queda el último listado.
func (s *Service) Watch(ctx context.Context) <-chan Listing {
	return s.watch(ctx, s.List)
}

// WatchSearch es como Watch pero con el filtro aplicado en el store.
func (s *Service) WatchSearch(ctx context.Context, filter Filter) <-chan Listing {
	return s.watch(ctx, func(ctx context.Context) ([]Patient, error) {
		return s.Search(ctx, filter)
	})
}

func (s *Service) watch(ctx context.Context, query func(context.Context) ([]Patient, error)) <-chan Listing {
	out := make(chan Listing, 1)

	// Suscribir antes de la primera consulta para no perder cambios intermedios.
	changes, cancel := s.repo.Subscribe()

	go func() {
		defer close(out)
		defer cancel()

		for {
			items, err := query(ctx)
			if ctx.Err() != nil {
				return
			}
			pushLatest(out, Listing{Patients: items, Err: err})

			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
			}
		}
	}()

	return out
}

// pushLatest reemplaza lo pendiente en out por l. Solo hay un productor por canal.
func pushLatest(out chan Listing, l Listing) {
	for {
		select {
		case out <- l:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

func (s *Service) observe(op string, started time.Time, err *error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveStore(op, time.Since(started), *err)
}
