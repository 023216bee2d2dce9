package directory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
}
