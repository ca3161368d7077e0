package model

// Property is a listing that operators can share with a contact.
type Property struct {
	ID           string `json:"id" gorm:"primaryKey;type:text"`
	Title        string `json:"title" gorm:"type:text"`
	Location     string `json:"location" gorm:"type:text"`
	Price        int64  `json:"price"`
	Bedrooms     int    `json:"bedrooms"`
	PropertyType string `json:"property_type" gorm:"column:property_type;type:text"`
	Description  string `json:"description" gorm:"type:text"`
	ImageURL     string `json:"image_url,omitempty" gorm:"column:image_url;type:text"`
}

// TableName specifies the table name for the Property model.
func (Property) TableName() string {
	return "properties"
}
