// Package leads validates and stores contact form submissions.
package leads

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/db"
	"github.com/skyroutes/flightdeck/internal/model"
)

var leadsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	leadsLogger = l
}

const (
	maxNameLen    = 200
	maxSubjectLen = 300
	maxMessageLen = 5000
)

// Submission is the contact form payload as received from the client.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Program string `json:"program,omitempty"`
}

// Validate normalizes the submission in place and reports the first
// problem found. Errors are safe to echo back to the client.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Message = strings.TrimSpace(s.Message)
	s.Program = strings.TrimSpace(s.Program)

	switch {
	case s.Name == "":
		return fmt.Errorf("validation: name is required")
	case len(s.Name) > maxNameLen:
		return fmt.Errorf("validation: name is too long")
	case s.Email == "":
		return fmt.Errorf("validation: email is required")
	case s.Subject == "":
		return fmt.Errorf("validation: subject is required")
	case len(s.Subject) > maxSubjectLen:
		return fmt.Errorf("validation: subject is too long")
	case s.Message == "":
		return fmt.Errorf("validation: message is required")
	case len(s.Message) > maxMessageLen:
		return fmt.Errorf("validation: message is too long")
	}

	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("validation: email address is invalid")
	}
	return nil
}

// Store persists leads in the local database.
type Store struct {
	db db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

// Save validates the submission and inserts it, returning the stored
// lead with its assigned id.
func (st *Store) Save(sub Submission) (*model.Lead, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	lead := &model.Lead{
		ID:        model.LeadID(uuid.NewString()),
		Name:      sub.Name,
		Email:     sub.Email,
		Phone:     sub.Phone,
		Subject:   sub.Subject,
		Message:   sub.Message,
		Program:   sub.Program,
		CreatedAt: time.Now().UTC(),
	}

	_, err := st.db.Exec(`INSERT INTO leads (id, name, email, phone, subject, message, program, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Subject, lead.Message, lead.Program, lead.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error saving lead: %w", err)
	}

	leadsLogger.Info().
		Str("lead_id", string(lead.ID)).
		Str("subject", lead.Subject).
		Str("program", lead.Program).
		Msg("Lead saved")
	return lead, nil
}

// List returns the most recent leads, newest first.
func (st *Store) List(limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := st.db.Query(`SELECT id, name, email, phone, subject, message, program, created_at
		FROM leads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing leads: %w", err)
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		var lead model.Lead
		var id string
		if err := rows.Scan(&id, &lead.Name, &lead.Email, &lead.Phone,
			&lead.Subject, &lead.Message, &lead.Program, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning lead: %w", err)
		}
		lead.ID = model.LeadID(id)
		out = append(out, lead)
	}
	return out, rows.Err()
}
