package project

import "time"

// Project is the server-owned project record; the client holds one cached
// copy per open scope.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	OwnerID      string    `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}
