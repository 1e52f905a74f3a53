package models

import (
	"github.com/google/uuid"
)

// Player represents a roster member of a match session
type Player struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	Rating       int       `json:"rating"` // star rating, 0-5
	Position     *string   `json:"position,omitempty"`
	JerseyNumber *int      `json:"jersey_number,omitempty"`
	Substitute   bool      `json:"substitute"`
}
