package models

// Study is a catalog entry for a test the lab can perform. Reference data:
// the core never writes to it, and appointment line items freeze its price at
// booking time so later catalog edits cannot change a billed amount.
type Study struct {
	BaseModel
	Code      string  `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name      string  `gorm:"size:255;not null" json:"name"`
	Category  string  `gorm:"size:100" json:"category,omitempty"`
	BasePrice float64 `gorm:"not null;default:0" json:"basePrice"`
	IsActive  bool    `gorm:"default:true" json:"isActive"`
}
