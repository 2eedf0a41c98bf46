package models

import "time"

// Store represents one row of the stores directory table. Every pool
// operation is keyed by a resolved Store, never by raw request data.
type Store struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	PoolTable string    `json:"pool_table"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
