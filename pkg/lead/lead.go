// Package lead defines the business entity that rules and workflows read and mutate.
package lead

import "time"

// Lead is a prospective customer record.
type Lead struct {
	ID             string    `json:"id" yaml:"id"`
	CompanyName    string    `json:"companyName" yaml:"companyName"`
	Domain         string    `json:"domain,omitempty" yaml:"domain,omitempty"`
	Industry       string    `json:"industry,omitempty" yaml:"industry,omitempty"`
	Status         string    `json:"status" yaml:"status"`
	Score          float64   `json:"score" yaml:"score"`
	AssignedToID   string    `json:"assignedToId,omitempty" yaml:"assignedToId,omitempty"`
	AssignedTeamID string    `json:"assignedTeamId,omitempty" yaml:"assignedTeamId,omitempty"`
	CampaignID     string    `json:"campaignId,omitempty" yaml:"campaignId,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	CompanySize    *int      `json:"companySize,omitempty" yaml:"companySize,omitempty"`
	Revenue        *float64  `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Status values used by the default pipeline. Status is free-form; these are
// the values the engine itself writes in examples and tests.
const (
	StatusRaw       = "RAW"
	StatusEnriched  = "ENRICHED"
	StatusQualified = "QUALIFIED"
	StatusContacted = "CONTACTED"
	StatusConverted = "CONVERTED"
	StatusLost      = "LOST"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status         *string
	Score          *float64
	AssignedToID   *string
	AssignedTeamID *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.Score == nil && p.AssignedToID == nil && p.AssignedTeamID == nil
}

// Apply writes the patch onto l and bumps UpdatedAt.
func (p Patch) Apply(l *Lead, now time.Time) {
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Score != nil {
		l.Score = *p.Score
	}
	if p.AssignedToID != nil {
		l.AssignedToID = *p.AssignedToID
	}
	if p.AssignedTeamID != nil {
		l.AssignedTeamID = *p.AssignedTeamID
	}
	l.UpdatedAt = now
}

// Clone returns a deep copy of l.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	if l.Confidence != nil {
		v := *l.Confidence
		c.Confidence = &v
	}
	if l.CompanySize != nil {
		v := *l.CompanySize
		c.CompanySize = &v
	}
	if l.Revenue != nil {
		v := *l.Revenue
		c.Revenue = &v
	}
	return &c
}
