package auth

import "time"

// Shop is a tenant login. Every authenticated request acts on exactly one
// shop's rows.
type Shop struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
