package models

import (
	"time"
)

// Patient represents a person whose samples are processed by the lab.
// The national ID is the immutable join key used by legacy lookups.
type Patient struct {
	BaseModel
	FirstName   string     `gorm:"size:100;not null" json:"firstName"`
	LastName    string     `gorm:"size:100;not null" json:"lastName"`
	NationalID  string     `gorm:"uniqueIndex;size:20;not null" json:"nationalId"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Sex         string     `gorm:"size:10" json:"sex,omitempty"`
	Nationality string     `gorm:"size:50" json:"nationality,omitempty"`
	PhoneNumber string     `gorm:"size:30" json:"phoneNumber,omitempty"`
	Email       string     `gorm:"size:255" json:"email,omitempty"`

	// Relations (not always preloaded)
	Appointments []Appointment `gorm:"foreignKey:PatientID" json:"-"`
	Invoices     []Invoice     `gorm:"foreignKey:PatientID" json:"-"`
	Results      []Result      `gorm:"foreignKey:PatientID" json:"-"`
}

// PatientSummary is the denormalized slice of patient data that lookup
// responses embed so consumers can render without a second request.
type PatientSummary struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	NationalID  string     `json:"nationalId"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Sex         string     `json:"sex,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
}

// Summary returns the embeddable summary for API responses.
func (p *Patient) Summary() PatientSummary {
	return PatientSummary{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		NationalID:  p.NationalID,
		DateOfBirth: p.DateOfBirth,
		Sex:         p.Sex,
		Nationality: p.Nationality,
	}
}
