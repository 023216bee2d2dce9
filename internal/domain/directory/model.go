// Package directory resolves users and appointments from the platform's
// relational store. The communication core only ever reads from it: display
// names and roles at connect time, appointment participants at call creation.
package directory

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of participant roles the communication core knows.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a stored role string into a Role, rejecting anything
// outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDoctor, RolePatient, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// User is the slice of the users table the communication core consumes.
type User struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Role     Role      `json:"role"`
}

// Appointment carries the participants of a scheduled encounter.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
}
