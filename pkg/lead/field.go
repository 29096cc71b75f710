package lead

// Known field names. These resolve from the lead itself and shadow any
// context value with the same name.
const (
	FieldScore          = "score"
	FieldStatus         = "status"
	FieldIndustry       = "industry"
	FieldCompanyName    = "companyName"
	FieldDomain         = "domain"
	FieldAssignedToID   = "assignedToId"
	FieldAssignedTeamID = "assignedTeamId"
	FieldCampaignID     = "campaignId"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldConfidence     = "confidence"
	FieldCompanySize    = "companySize"
	FieldRevenue        = "revenue"
)

var knownFields = map[string]struct{}{
	FieldScore:          {},
	FieldStatus:         {},
	FieldIndustry:       {},
	FieldCompanyName:    {},
	FieldDomain:         {},
	FieldAssignedToID:   {},
	FieldAssignedTeamID: {},
	FieldCampaignID:     {},
	FieldCreatedAt:      {},
	FieldUpdatedAt:      {},
	FieldConfidence:     {},
	FieldCompanySize:    {},
	FieldRevenue:        {},
}

// IsKnownField reports whether name is one of the lead's own fields.
func IsKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}

// Field returns the value of a known field. The second result is false when
// name is not a known field. Unset optional fields return nil, true; an
// empty assignee, team or campaign id counts as unset.
//
// A nil lead resolves every known field to nil.
func (l *Lead) Field(name string) (any, bool) {
	if !IsKnownField(name) {
		return nil, false
	}
	if l == nil {
		return nil, true
	}

	switch name {
	case FieldScore:
		return l.Score, true
	case FieldStatus:
		return l.Status, true
	case FieldIndustry:
		return l.Industry, true
	case FieldCompanyName:
		return l.CompanyName, true
	case FieldDomain:
		return l.Domain, true
	case FieldAssignedToID:
		return optionalRef(l.AssignedToID), true
	case FieldAssignedTeamID:
		return optionalRef(l.AssignedTeamID), true
	case FieldCampaignID:
		return optionalRef(l.CampaignID), true
	case FieldCreatedAt:
		return l.CreatedAt, true
	case FieldUpdatedAt:
		return l.UpdatedAt, true
	case FieldConfidence:
		if l.Confidence == nil {
			return nil, true
		}
		return *l.Confidence, true
	case FieldCompanySize:
		if l.CompanySize == nil {
			return nil, true
		}
		return *l.CompanySize, true
	case FieldRevenue:
		if l.Revenue == nil {
			return nil, true
		}
		return *l.Revenue, true
	}
	return nil, false
}

func optionalRef(id string) any {
	if id == "" {
		return nil
	}
	return id
}
