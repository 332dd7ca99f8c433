package stats

import (
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Overview is the admin dashboard aggregate. It is recomputed per request,
// so repeated reads between writes return identical numbers.
type Overview struct {
	TotalApplications int64            `json:"total_applications"`
	ByStatus          map[string]int64 `json:"by_status"`
	// Revenue sums completed payments on approved applications, in the
	// usual fixed-point rupee rendering.
	Revenue       types.Money    `json:"revenue"`
	TotalCitizens int64          `json:"total_citizens"`
	PerService    []ServiceCount `json:"per_service"`
}

// ServiceCount is the application count for one catalog service.
type ServiceCount struct {
	ServiceID   types.ID `json:"service_id"`
	ServiceName string   `json:"service_name"`
	Count       int64    `json:"count"`
}
