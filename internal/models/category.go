package models

// Category labels expenses. Default categories are shared by everyone and
// cannot be changed; custom ones belong to the user that created them.
type Category struct {
	Base
	Name      string  `gorm:"size:50;not null" json:"name"`
	Icon      string  `gorm:"size:50" json:"icon"`
	Color     string  `gorm:"size:7" json:"color"`
	IsDefault bool    `gorm:"not null;default:false" json:"is_default"`
	CreatedBy *string `gorm:"type:uuid" json:"created_by,omitempty"`
}
