package user

import "time"

type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"` // never expose hash in JSON
	Role           string     `json:"role"`
	Active         bool       `json:"active"`
	IsAdmin        bool       `json:"isAdmin"`
	EmailConfirmed bool       `json:"emailConfirmed"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeactivatedAt  *time.Time `json:"deactivatedAt,omitempty"`
	// set only while Active is false
	DeactivationReason *string `json:"deactivationReason,omitempty"`
}

// Roles an account can carry. Admin rights are a separate flag so a clinic or
// vet account can also administer the instance.
const (
	RoleTutor  = "tutor"
	RoleVet    = "veterinario"
	RoleClinic = "clinica"
)

func ValidRole(role string) bool {
	switch role {
	case RoleTutor, RoleVet, RoleClinic:
		return true
	}
	return false
}
