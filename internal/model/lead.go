package model

import "time"

type LeadID string

// Lead is one contact-form submission.
type Lead struct {
	ID        LeadID    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Program   string    `json:"program,omitempty"` // training program of interest
	CreatedAt time.Time `json:"createdAt"`
}
