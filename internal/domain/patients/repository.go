package patients

import (
	"context"
	"time"
)

type Repository interface {
	List(ctx context.Context) ([]Patient, error)
	Search(ctx context.Context, filter Filter) ([]Patient, error)

	Insert(ctx context.Context, p Patient) (Patient, error)
	Update(ctx context.Context, p Patient) error
	Delete(ctx context.Context, p Patient) error

	GetByID(ctx context.Context, id int64) (Patient, error)
	ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (bool, error)

	// Subscribe entrega una señal después de cada escritura confirmada.
	// La función devuelta cancela la suscripción.
	Subscribe() (<-chan struct{}, func())
}
