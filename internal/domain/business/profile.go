// Package business holds the business profile aggregate, the change records
// produced when a profile is updated, and the persistence ports for both.
package business

import (
	"strings"

	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/validation"
)

// CompanySize is an ordinal headcount band.
type CompanySize string

const (
	SizeMicro  CompanySize = "micro"
	SizeSmall  CompanySize = "small"
	SizeMedium CompanySize = "medium"
	SizeLarge  CompanySize = "large"
)

var sizeRank = map[CompanySize]int{
	SizeMicro:  0,
	SizeSmall:  1,
	SizeMedium: 2,
	SizeLarge:  3,
}

// Rank returns the ordinal position of s, or -1 when s is not a known band.
// Comparison is case-insensitive so "Small" and "small" rank the same.
func (s CompanySize) Rank() int {
	if r, ok := sizeRank[CompanySize(strings.ToLower(strings.TrimSpace(string(s))))]; ok {
		return r
	}
	return -1
}

// ExportExperience is an ordinal measure of prior export activity.
type ExportExperience string

const (
	ExperienceNone      ExportExperience = "none"
	ExperienceLimited   ExportExperience = "limited"
	ExperienceModerate  ExportExperience = "moderate"
	ExperienceExtensive ExportExperience = "extensive"
)

var experienceRank = map[ExportExperience]int{
	ExperienceNone:      0,
	ExperienceLimited:   1,
	ExperienceModerate:  2,
	ExperienceExtensive: 3,
}

// Rank returns the ordinal position of e, or -1 when e is unknown.
func (e ExportExperience) Rank() int {
	if r, ok := experienceRank[ExportExperience(strings.ToLower(strings.TrimSpace(string(e))))]; ok {
		return r
	}
	return -1
}

// Product is something the business sells. ID is unique within a profile.
type Product struct {
	ID          string `json:"id" bson:"id" validate:"required"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Category    string `json:"category" bson:"category"`
}

// Certification is a quality or compliance credential held by the business.
type Certification struct {
	ID   string `json:"id" bson:"id" validate:"required"`
	Name string `json:"name" bson:"name"`
}

// Profile is an immutable snapshot of a business. Updates produce a new
// snapshot; the old and new snapshots are handed to the change tracker
// together.
type Profile struct {
	ID               string           `json:"id" bson:"_id"`
	Name             string           `json:"name" bson:"name"`
	Website          string           `json:"website,omitempty" bson:"website,omitempty"`
	Industry         string           `json:"industry" bson:"industry"`
	Size             CompanySize      `json:"size" bson:"size"`
	ExportExperience ExportExperience `json:"export_experience" bson:"export_experience"`
	Products         []Product        `json:"products" bson:"products" validate:"unique=ID,dive"`
	Certifications   []Certification  `json:"certifications" bson:"certifications" validate:"unique=ID,dive"`
}

// Validate checks identity and the per-profile uniqueness of product and
// certification IDs.
func (p *Profile) Validate() error {
	if p == nil {
		return errors.New(errors.ErrCodeProfileInvalid, "profile is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return errors.New(errors.ErrCodeProfileInvalid, "profile id must not be empty")
	}
	return validation.Struct(p, errors.ErrCodeProfileInvalid)
}

// Clone returns a deep copy so callers can derive a new snapshot without
// touching the original.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Products != nil {
		c.Products = append([]Product(nil), p.Products...)
	}
	if p.Certifications != nil {
		c.Certifications = append([]Certification(nil), p.Certifications...)
	}
	return &c
}
