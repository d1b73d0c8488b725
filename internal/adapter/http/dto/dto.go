package dto

import (
	"encoding/json"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/response"
)

// Resource type names used in the {id, type, attributes} envelope.
const (
	TypeSurvey   = "survey"
	TypeResponse = "response"
	TypeWebhook  = "webhook"
	TypeDelivery = "webhook_delivery"
)

// CreateSurveyRequest is the request body for POST /surveys.
type CreateSurveyRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Status      string `json:"status" binding:"omitempty,oneof=draft active closed"`
}

// ToInput converts the request into service input.
func (r CreateSurveyRequest) ToInput() ports.CreateSurveyInput {
	return ports.CreateSurveyInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.SurveyStatus(r.Status),
	}
}

// UpdateSurveyRequest is the request body for PATCH /surveys/:id. Omitted fields are unchanged.
type UpdateSurveyRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Status      *string `json:"status" binding:"omitempty,oneof=draft active closed"`
}

// ToInput converts the request into service input.
func (r UpdateSurveyRequest) ToInput() ports.UpdateSurveyInput {
	in := ports.UpdateSurveyInput{Title: r.Title, Description: r.Description}
	if r.Status != nil {
		s := domain.SurveyStatus(*r.Status)
		in.Status = &s
	}
	return in
}

// CreateResponseRequest is the request body for POST /surveys/:id/responses.
type CreateResponseRequest struct {
	Answers json.RawMessage `json:"answers" binding:"required,json_object"`
}

// CreateWebhookRequest is the request body for POST /webhooks.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,max=2048,safe_url"`
	Events []string `json:"events" binding:"required,min=1,max=16,dive,event_type"`
}

// ToInput converts the request into service input.
func (r CreateWebhookRequest) ToInput() ports.CreateWebhookInput {
	events := make([]domain.EventType, len(r.Events))
	for i, e := range r.Events {
		events[i] = domain.EventType(e)
	}
	return ports.CreateWebhookInput{URL: r.URL, Events: events}
}

// SurveyAttributes is the public representation of a survey.
type SurveyAttributes struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SurveyResource converts a survey into the resource envelope.
func SurveyResource(s *domain.Survey) response.Resource {
	return response.Resource{
		ID:   s.ID.String(),
		Type: TypeSurvey,
		Attributes: SurveyAttributes{
			Title:       s.Title,
			Description: s.Description,
			Status:      string(s.Status),
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		},
	}
}

// ResponseAttributes is the public representation of a survey response.
type ResponseAttributes struct {
	SurveyID  string          `json:"survey_id"`
	Answers   json.RawMessage `json:"answers"`
	CreatedAt time.Time       `json:"created_at"`
}

// ResponseResource converts a survey response into the resource envelope.
func ResponseResource(r *domain.Response) response.Resource {
	return response.Resource{
		ID:   r.ID.String(),
		Type: TypeResponse,
		Attributes: ResponseAttributes{
			SurveyID:  r.SurveyID.String(),
			Answers:   r.Answers,
			CreatedAt: r.CreatedAt,
		},
	}
}

// WebhookAttributes is the public representation of a subscription. It never carries the secret.
type WebhookAttributes struct {
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatedWebhookAttributes adds the signing secret, shown once at creation.
type CreatedWebhookAttributes struct {
	WebhookAttributes
	Secret string `json:"secret"`
}

func webhookAttributes(s *domain.WebhookSubscription) WebhookAttributes {
	events := make([]string, len(s.Events))
	for i, e := range s.Events {
		events[i] = string(e)
	}
	return WebhookAttributes{
		URL:       s.URL,
		Events:    events,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// WebhookResource converts a subscription into the resource envelope.
func WebhookResource(s *domain.WebhookSubscription) response.Resource {
	return response.Resource{ID: s.ID.String(), Type: TypeWebhook, Attributes: webhookAttributes(s)}
}

// CreatedWebhookResource includes the plaintext secret.
func CreatedWebhookResource(w *ports.CreatedWebhook) response.Resource {
	return response.Resource{
		ID:   w.Subscription.ID.String(),
		Type: TypeWebhook,
		Attributes: CreatedWebhookAttributes{
			WebhookAttributes: webhookAttributes(w.Subscription),
			Secret:            w.Secret,
		},
	}
}

// DeliveryAttributes is the public representation of a delivery record.
type DeliveryAttributes struct {
	WebhookID   string    `json:"webhook_id"`
	PayloadID   string    `json:"payload_id"`
	EventType   string    `json:"event_type"`
	Success     bool      `json:"success"`
	StatusCode  *int      `json:"status_code,omitempty"`
	Error       *string   `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// DeliveryResource converts a delivery record into the resource envelope.
func DeliveryResource(d *domain.DeliveryRecord) response.Resource {
	return response.Resource{
		ID:   d.ID,
		Type: TypeDelivery,
		Attributes: DeliveryAttributes{
			WebhookID:   d.WebhookID.String(),
			PayloadID:   d.PayloadID,
			EventType:   string(d.EventType),
			Success:     d.Success,
			StatusCode:  d.StatusCode,
			Error:       d.Error,
			Attempts:    d.Attempts,
			AttemptedAt: d.AttemptedAt,
		},
	}
}

// Resources maps a page of domain values into resource envelopes.
func Resources[T any](items []T, convert func(*T) response.Resource) []response.Resource {
	out := make([]response.Resource, len(items))
	for i := range items {
		out[i] = convert(&items[i])
	}
	return out
}
