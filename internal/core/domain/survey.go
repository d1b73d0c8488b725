package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SurveyStatus is the publication state of a survey.
type SurveyStatus string

const (
	SurveyStatusDraft  SurveyStatus = "draft"
	SurveyStatusActive SurveyStatus = "active"
	SurveyStatusClosed SurveyStatus = "closed"
)

// Valid reports whether s is a known status.
func (s SurveyStatus) Valid() bool {
	switch s {
	case SurveyStatusDraft, SurveyStatusActive, SurveyStatusClosed:
		return true
	}
	return false
}

// Survey is owned by the subject of the token that created it.
type Survey struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      SurveyStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOpen reports whether the survey accepts responses.
func (s *Survey) IsOpen() bool {
	return s.Status == SurveyStatusActive
}

// Response is one submission to a survey. Answers are stored as raw JSON.
type Response struct {
	ID        uuid.UUID       `json:"id"`
	SurveyID  uuid.UUID       `json:"survey_id"`
	Answers   json.RawMessage `json:"answers"`
	CreatedAt time.Time       `json:"created_at"`
}
