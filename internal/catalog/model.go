package catalog

import (
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Department groups the services offered by one government office.
type Department struct {
	ID          types.ID  `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service is a certificate or registration citizens can apply for. Fee is
// stored in paise; RequiredDocuments lists the document labels a submission
// must include.
type Service struct {
	ID                 types.ID    `json:"id"`
	DepartmentID       types.ID    `json:"department_id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Fee                types.Money `json:"fee"`
	RequiredDocuments  []string    `json:"required_documents"`
	ProcessingTimeDays int         `json:"processing_time_days"`
	IsActive           bool        `json:"is_active"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type CreateDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateServiceRequest struct {
	DepartmentID       types.ID `json:"department_id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Fee                string   `json:"fee"`
	RequiredDocuments  []string `json:"required_documents"`
	ProcessingTimeDays int      `json:"processing_time_days"`
	IsActive           *bool    `json:"is_active,omitempty"`
}

type UpdateServiceRequest struct {
	Name               *string  `json:"name,omitempty"`
	Description        *string  `json:"description,omitempty"`
	Fee                *string  `json:"fee,omitempty"`
	RequiredDocuments  []string `json:"required_documents,omitempty"`
	ProcessingTimeDays *int     `json:"processing_time_days,omitempty"`
	IsActive           *bool    `json:"is_active,omitempty"`
}

// ListServicesFilter narrows service listings.
type ListServicesFilter struct {
	DepartmentID *types.ID
	ActiveOnly   bool
	Search       string
}
