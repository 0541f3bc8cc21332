package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment represents a scheduled lab visit with one or more ordered
// studies. Appointments are never deleted, only cancelled.
type Appointment struct {
	BaseModel
	PatientID          string            `gorm:"size:36;index;not null" json:"patientId"`
	Date               time.Time         `json:"date"`
	Status             AppointmentStatus `gorm:"size:20;default:'scheduled'" json:"status"`
	Notes              string            `gorm:"type:text" json:"notes,omitempty"`
	CancellationReason string            `gorm:"size:255" json:"cancellationReason,omitempty"`
	CreatedByID        string            `gorm:"size:36" json:"createdById,omitempty"`
	ModifiedByID       string            `gorm:"size:36" json:"modifiedById,omitempty"`

	// Relations
	Patient   Patient         `gorm:"foreignKey:PatientID" json:"-"`
	LineItems []StudyLineItem `gorm:"foreignKey:AppointmentID" json:"lineItems,omitempty"`
}

// StudyLineItem is one ordered study on an appointment with the price and
// discount frozen at booking time.
type StudyLineItem struct {
	BaseModel
	AppointmentID string  `gorm:"size:36;index;not null" json:"appointmentId"`
	StudyID       string  `gorm:"size:36;index;not null" json:"studyId"`
	Price         float64 `gorm:"not null" json:"price"`
	Discount      float64 `gorm:"not null;default:0" json:"discount"`
	Position      int     `gorm:"not null;default:0" json:"position"`

	Study Study `gorm:"foreignKey:StudyID" json:"study,omitempty"`
}
