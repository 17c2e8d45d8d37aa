package domain

import (
	"time"
)

// Status is the moderation state of a Poi.
type Status string

// Moderation states. Submitted moves to Approved or Rejected; Rejected POIs
// are deleted, so no stored record ever carries it.
const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// Poi is a point of interest in the catalog.
type Poi struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organization_id"`
	CreatedBy          string    `json:"created_by"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	Address            string    `json:"address"`
	Location           Location  `json:"location"`
	SubmitterEmail     string    `json:"submitter_email,omitempty"`
	SubmitterPhone     string    `json:"submitter_phone,omitempty"`
	Status             Status    `json:"status"`
	Active             bool      `json:"active"`
	DeactivationReason *string   `json:"deactivation_reason,omitempty"`
	DeactivatedBy      *string   `json:"deactivated_by,omitempty"`
	ApprovedBy         *string   `json:"approved_by,omitempty"`
	PopularityScore    float64   `json:"popularity_score"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Submitter returns the notification recipient for the user who submitted p.
// It reads the record as it is now, so take it before deleting p.
func (p *Poi) Submitter() Recipient {
	return Recipient{UserID: p.CreatedBy, Email: p.SubmitterEmail, Phone: p.SubmitterPhone}
}

// Redacted returns a copy of p without the submitter's contact details.
// Anything leaving the service to callers other than the submitter or a
// moderator goes through it.
func (p Poi) Redacted() Poi {
	p.SubmitterEmail = ""
	p.SubmitterPhone = ""
	return p
}

// Visible reports whether p is shown in public listings.
func (p *Poi) Visible() bool {
	return p.Status == StatusApproved && p.Active
}

// CreatePoiInput is the data needed to submit a new Poi.
type CreatePoiInput struct {
	OrganizationID string   `json:"organization_id" validate:"required,uuid"`
	CreatedBy      string   `json:"created_by" validate:"required"`
	Name           string   `json:"name" validate:"required,notblank,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Category       string   `json:"category" validate:"required,notblank,max=100"`
	Address        string   `json:"address" validate:"max=500"`
	Location       Location `json:"location"`
	SubmitterEmail string   `json:"submitter_email" validate:"omitempty,email"`
	SubmitterPhone string   `json:"submitter_phone" validate:"omitempty,e164"`
}

// PoiPatch is a partial update. Nil fields are left unchanged.
type PoiPatch struct {
	Name           *string   `json:"name" validate:"omitempty,notblank,max=200"`
	Description    *string   `json:"description" validate:"omitempty,max=5000"`
	Category       *string   `json:"category" validate:"omitempty,notblank,max=100"`
	Address        *string   `json:"address" validate:"omitempty,max=500"`
	Location       *Location `json:"location"`
	SubmitterEmail *string   `json:"submitter_email" validate:"omitempty,email"`
	SubmitterPhone *string   `json:"submitter_phone" validate:"omitempty,e164"`
}

// Apply copies the non-nil fields of patch onto p and reports whether the
// name changed.
func (patch PoiPatch) Apply(p *Poi) (nameChanged bool) {
	if patch.Name != nil && *patch.Name != p.Name {
		p.Name = *patch.Name
		nameChanged = true
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.SubmitterEmail != nil {
		p.SubmitterEmail = *patch.SubmitterEmail
	}
	if patch.SubmitterPhone != nil {
		p.SubmitterPhone = *patch.SubmitterPhone
	}
	return nameChanged
}

// PoiFilter selects a page of POIs.
type PoiFilter struct {
	OrganizationID string
	Status         *Status
	Active         *bool
	Limit          int
	Offset         int
}
