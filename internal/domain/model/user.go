package model

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User carries the minimal identity needed by the subscription flows:
// checkout needs a name/email for the gateway and the confirmation email.
type User struct {
	ID        string // UUID
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == UserRoleAdmin }
