// Package models holds the server-side data structures persisted by the
// repositories.
package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
