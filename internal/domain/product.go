package domain

import "time"

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Material     string    `json:"material"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	ImageURL     string    `json:"image_url"`
	RotationHint string    `json:"rotation_hint,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
