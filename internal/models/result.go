package models

import (
	"time"
)

// ResultStatus represents the lifecycle state of a lab result
type ResultStatus string

const (
	ResultDraft     ResultStatus = "draft"
	ResultCompleted ResultStatus = "completed"
	ResultDelivered ResultStatus = "delivered"
	ResultAnnulled  ResultStatus = "annulled"
)

// Result is the clinical output of one study performed for one patient.
// Created as draft when a sample is processed, completed by validation,
// delivered when handed to the patient. Annulled results are excluded from
// every patient-facing listing.
type Result struct {
	BaseModel
	PatientID     string  `gorm:"size:36;index;not null" json:"patientId"`
	StudyID       string  `gorm:"size:36;index;not null" json:"studyId"`
	AppointmentID *string `gorm:"size:36;index" json:"appointmentId,omitempty"`
	InvoiceID     *string `gorm:"size:36;index" json:"invoiceId,omitempty"`

	// SampleCode is the externally visible identifier, historically issued
	// digit-only but stored with an "L" laboratory prefix.
	SampleCode string       `gorm:"uniqueIndex;size:30;not null" json:"sampleCode"`
	Status     ResultStatus `gorm:"size:20;default:'draft'" json:"status"`

	Interpretation string `gorm:"type:text" json:"interpretation,omitempty"`
	Conclusion     string `gorm:"type:text" json:"conclusion,omitempty"`

	Printed      bool `gorm:"default:false" json:"printed"`
	TimesPrinted int  `gorm:"not null;default:0" json:"timesPrinted"`

	// Audit fields
	PerformedByID string     `gorm:"size:36" json:"performedById,omitempty"`
	ValidatedByID *string    `gorm:"size:36" json:"validatedById,omitempty"`
	ValidatedAt   *time.Time `json:"validatedAt,omitempty"`

	// Relations
	Patient     Patient      `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Study       Study        `gorm:"foreignKey:StudyID" json:"study,omitempty"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
	Invoice     *Invoice     `gorm:"foreignKey:InvoiceID" json:"-"`
	ValidatedBy *User        `gorm:"foreignKey:ValidatedByID" json:"-"`
}
