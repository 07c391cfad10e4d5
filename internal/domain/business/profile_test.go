package business

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func TestCompanySize_Rank(t *testing.T) {
	assert.Equal(t, 0, SizeMicro.Rank())
	assert.Equal(t, 1, CompanySize("Small").Rank())
	assert.Equal(t, 2, CompanySize(" MEDIUM ").Rank())
	assert.Equal(t, 3, SizeLarge.Rank())
	assert.Equal(t, -1, CompanySize("").Rank())
	assert.Equal(t, -1, CompanySize("enterprise").Rank())
}

func TestExportExperience_Rank(t *testing.T) {
	assert.Equal(t, 0, ExperienceNone.Rank())
	assert.Equal(t, 1, ExportExperience("Limited").Rank())
	assert.Equal(t, 3, ExperienceExtensive.Rank())
	assert.Equal(t, -1, ExportExperience("some").Rank())
}

func TestProfile_Validate(t *testing.T) {
	valid := &Profile{
		ID:       "biz-1",
		Industry: "Food & Beverage",
		Products: []Product{{ID: "p1", Name: "Dried Mango"}, {ID: "p2", Name: "Banana Chips"}},
	}
	assert.NoError(t, valid.Validate())

	var nilProfile *Profile
	assert.True(t, errors.IsValidation(nilProfile.Validate()))

	noID := valid.Clone()
	noID.ID = " "
	assert.True(t, errors.IsCode(noID.Validate(), errors.ErrCodeProfileInvalid))

	dup := valid.Clone()
	dup.Products[1].ID = "p1"
	err := dup.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	missingCertID := valid.Clone()
	missingCertID.Certifications = []Certification{{Name: "HACCP"}}
	assert.Error(t, missingCertID.Validate())
}

func TestProfile_CloneIsDeep(t *testing.T) {
	orig := &Profile{ID: "biz-1", Products: []Product{{ID: "p1", Name: "A"}}}
	c := orig.Clone()
	c.Products[0].Name = "B"
	assert.Equal(t, "A", orig.Products[0].Name)

	var nilProfile *Profile
	assert.Nil(t, nilProfile.Clone())
}

func TestFilterBySignificance(t *testing.T) {
	changes := []ProfileChange{
		{Field: FieldIndustry, Significance: SignificanceHigh},
		{Field: FieldSize, Significance: SignificanceMedium},
		{Field: FieldProducts, ItemID: "p1", Significance: SignificanceHigh},
	}
	high := FilterBySignificance(changes, SignificanceHigh)
	require.Len(t, high, 2)
	assert.Equal(t, FieldIndustry, high[0].Field)
	assert.Equal(t, "p1", high[1].ItemID)
	assert.Empty(t, FilterBySignificance(nil, SignificanceHigh))
}

func TestSignificantChangeEvent(t *testing.T) {
	e := NewSignificantChangeEvent("biz-1", []ProfileChange{{Field: FieldIndustry}})
	assert.Equal(t, "biz-1", e.AggregateID())
	assert.Equal(t, EventTypeSignificantChange, e.EventType())
	assert.NotEmpty(t, e.EventID())
}

func TestChangeSubscriberFunc(t *testing.T) {
	called := false
	var sub ChangeSubscriber = ChangeSubscriberFunc(func(ctx context.Context, e *SignificantChangeEvent) error {
		called = true
		return nil
	})
	require.NoError(t, sub.OnSignificantChange(context.Background(), NewSignificantChangeEvent("b", nil)))
	assert.True(t, called)
}
