package models

// TypePV kind of minutes; Template overrides the built-in variant when set.
type TypePV struct {
	BaseModel
	Code            string `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Nom             string `json:"nom" gorm:"not null;size:200"`
	Description     string `json:"description" gorm:"size:500"`
	Template        string `json:"template,omitempty" gorm:"type:text"`
	TemplateVersion int    `json:"template_version" gorm:"not null;default:1"`
	Active          bool   `json:"active" gorm:"default:true"`
}

func (t *TypePV) TableName() string {
	return "types_pv"
}

// HasCustomTemplate reports whether the type carries its own template.
func (t *TypePV) HasCustomTemplate() bool {
	return t.Template != ""
}
