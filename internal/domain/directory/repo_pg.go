package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, role FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FullName, &role)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Role, err = ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (r *repoPG) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.pool.QueryRow(ctx,
		`SELECT id, doctor_id, patient_id FROM appointments WHERE id = $1`, id).
		Scan(&a.ID, &a.DoctorID, &a.PatientID)
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return &a, nil
}
