package business

import "time"

// ChangeType classifies a detected difference between two snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeRemoved  ChangeType = "REMOVED"
	ChangeModified ChangeType = "MODIFIED"
)

// Significance is a coarse severity tag used to decide whether downstream
// consumers are notified.
type Significance string

const (
	SignificanceLow    Significance = "LOW"
	SignificanceMedium Significance = "MEDIUM"
	SignificanceHigh   Significance = "HIGH"
)

// Profile field names as they appear in change records.
const (
	FieldName             = "name"
	FieldWebsite          = "website"
	FieldIndustry         = "industry"
	FieldSize             = "size"
	FieldExportExperience = "export_experience"
	FieldProducts         = "products"
	FieldCertifications   = "certifications"
)

// ProfileChange is one append-only entry in a business's change log.
// For scalar fields OldValue/NewValue hold the raw values; for list fields
// they hold the JSON encoding of the affected item and ItemID names it.
type ProfileChange struct {
	ID           string       `json:"id" bson:"_id"`
	BusinessID   string       `json:"business_id" bson:"business_id"`
	Field        string       `json:"field" bson:"field"`
	ItemID       string       `json:"item_id,omitempty" bson:"item_id,omitempty"`
	OldValue     string       `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue     string       `json:"new_value,omitempty" bson:"new_value,omitempty"`
	ChangeType   ChangeType   `json:"change_type" bson:"change_type"`
	Significance Significance `json:"significance" bson:"significance"`
	Timestamp    time.Time    `json:"timestamp" bson:"timestamp"`
}

// FilterBySignificance returns the changes tagged with s, preserving order.
func FilterBySignificance(changes []ProfileChange, s Significance) []ProfileChange {
	out := make([]ProfileChange, 0, len(changes))
	for _, c := range changes {
		if c.Significance == s {
			out = append(out, c)
		}
	}
	return out
}
