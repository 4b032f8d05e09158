package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DemographicCriteria narrows candidates by demographic signals
type DemographicCriteria struct {
	MinExperienceYears *int     `json:"min_experience_years,omitempty"`
	MaxExperienceYears *int     `json:"max_experience_years,omitempty"`
	Location           *string  `json:"location,omitempty"`
	GenderKeywords     []string `json:"gender_keywords,omitempty"`
}

// ProfessionalCriteria narrows candidates by professional signals
type ProfessionalCriteria struct {
	Industries       []string `json:"industries,omitempty"`
	SeniorityLevels  []string `json:"seniority_levels,omitempty"`
	CompanySize      *string  `json:"company_size,omitempty"`
	RequiredKeywords []string `json:"required_keywords,omitempty"`
	ExcludedKeywords []string `json:"excluded_keywords,omitempty"`
	CurrentJobTitles []string `json:"current_job_titles,omitempty"`
	TargetCompanies  []string `json:"target_companies,omitempty"`
}

// TargetingCriteria is the structured qualification predicate stored on a campaign.
// Every field is optional; an absent field imposes no constraint.
type TargetingCriteria struct {
	Demographics DemographicCriteria  `json:"demographics,omitempty"`
	Professional ProfessionalCriteria `json:"professional,omitempty"`
}

// IsEmpty reports whether the criteria impose no constraint at all
func (t TargetingCriteria) IsEmpty() bool {
	d, p := t.Demographics, t.Professional
	return d.MinExperienceYears == nil && d.MaxExperienceYears == nil &&
		d.Location == nil && len(d.GenderKeywords) == 0 &&
		len(p.Industries) == 0 && len(p.SeniorityLevels) == 0 &&
		p.CompanySize == nil && len(p.RequiredKeywords) == 0 &&
		len(p.ExcludedKeywords) == 0 && len(p.CurrentJobTitles) == 0 &&
		len(p.TargetCompanies) == 0
}

// Value implements the driver.Valuer interface for TargetingCriteria
func (t TargetingCriteria) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for TargetingCriteria
func (t *TargetingCriteria) Scan(value any) error {
	if value == nil {
		*t = TargetingCriteria{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TargetingCriteria", value)
	}

	return json.Unmarshal(bytes, t)
}
