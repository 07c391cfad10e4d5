package learning

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func newTestTracker(t *testing.T, log *mockChangeLog, pub ChangePublisher) *ProfileChangeTracker {
	t.Helper()
	clock := testutil.NewClock(testutil.ReferenceTime)
	tr, err := NewProfileChangeTracker(TrackerDeps{
		ChangeLog: log,
		Publisher: pub,
		Logger:    testutil.NewMockLogger(),
		Clock:     clock.Now,
		NewID:     testutil.SequentialIDs("chg"),
	})
	require.NoError(t, err)
	return tr
}

func TestTrackChange_IdenticalProfiles(t *testing.T) {
	log := &mockChangeLog{}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	p := testutil.SnackProfile("biz-1")
	changes, err := tr.TrackChange(context.Background(), "biz-1", p, p.Clone())
	require.NoError(t, err)
	assert.NotNil(t, changes)
	assert.Empty(t, changes)
	assert.Empty(t, log.appended)
	assert.Empty(t, pub.events)
}

func TestTrackChange_RequiresBusinessID(t *testing.T) {
	tr := newTestTracker(t, &mockChangeLog{}, nil)
	_, err := tr.TrackChange(context.Background(), "  ", nil, testutil.SnackProfile("x"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestTrackChange_IndustryChangeIsSignificant(t *testing.T) {
	log := &mockChangeLog{}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	old := testutil.SnackProfile("biz-1")
	updated := old.Clone()
	updated.Industry = "Agriculture"

	changes, err := tr.TrackChange(context.Background(), "biz-1", old, updated)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, business.FieldIndustry, c.Field)
	assert.Equal(t, "Food & Beverage", c.OldValue)
	assert.Equal(t, "Agriculture", c.NewValue)
	assert.Equal(t, business.ChangeModified, c.ChangeType)
	assert.Equal(t, business.SignificanceHigh, c.Significance)
	assert.Equal(t, "chg-1", c.ID)
	assert.Equal(t, "biz-1", c.BusinessID)
	assert.Equal(t, testutil.ReferenceTime, c.Timestamp)

	require.Len(t, log.appended, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, business.EventTypeSignificantChange, pub.events[0].EventType())
	assert.Equal(t, "biz-1", pub.events[0].AggregateID())
	assert.Equal(t, changes, pub.events[0].Changes)
}

func TestTrackChange_MediumChangesDoNotNotify(t *testing.T) {
	log := &mockChangeLog{}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	old := testutil.SnackProfile("biz-1")
	updated := old.Clone()
	updated.Size = business.SizeMedium
	updated.ExportExperience = business.ExperienceModerate
	updated.Website = "https://sunny.example"

	changes, err := tr.TrackChange(context.Background(), "biz-1", old, updated)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	for _, c := range changes {
		assert.Equal(t, business.SignificanceMedium, c.Significance)
		assert.Equal(t, business.ChangeModified, c.ChangeType)
	}
	assert.Equal(t, []string{business.FieldWebsite, business.FieldSize, business.FieldExportExperience},
		[]string{changes[0].Field, changes[1].Field, changes[2].Field})
	assert.Len(t, log.appended, 1)
	assert.Empty(t, pub.events)
}

func TestTrackChange_ListDiffs(t *testing.T) {
	log := &mockChangeLog{}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	old := testutil.SnackProfile("biz-1")
	old.Products = append(old.Products, business.Product{ID: "p-pine", Name: "Dried Pineapple", Category: "Snacks"})
	updated := old.Clone()
	updated.Products = []business.Product{
		{ID: "p-mango", Name: "Dried Mango", Category: "Snacks", Description: "Now organic"},
		{ID: "p-coco", Name: "Coconut Chips", Category: "Snacks"},
	}
	updated.Certifications = nil

	changes, err := tr.TrackChange(context.Background(), "biz-1", old, updated)
	require.NoError(t, err)
	require.Len(t, changes, 4)

	byItem := map[string]business.ProfileChange{}
	for _, c := range changes {
		byItem[c.ItemID] = c
	}

	mango := byItem["p-mango"]
	assert.Equal(t, business.ChangeModified, mango.ChangeType)
	assert.Equal(t, business.SignificanceMedium, mango.Significance)
	assert.Contains(t, mango.OldValue, `"id":"p-mango"`)
	assert.Contains(t, mango.NewValue, "Now organic")

	coco := byItem["p-coco"]
	assert.Equal(t, business.ChangeAdded, coco.ChangeType)
	assert.Equal(t, business.SignificanceHigh, coco.Significance)
	assert.Empty(t, coco.OldValue)

	pine := byItem["p-pine"]
	assert.Equal(t, business.ChangeRemoved, pine.ChangeType)
	assert.Equal(t, business.FieldProducts, pine.Field)
	assert.Empty(t, pine.NewValue)

	cert := byItem["c-haccp"]
	assert.Equal(t, business.FieldCertifications, cert.Field)
	assert.Equal(t, business.ChangeRemoved, cert.ChangeType)

	require.Len(t, pub.events, 1)
	assert.Len(t, pub.events[0].Changes, 3)
}

func TestTrackChange_FirstSnapshot(t *testing.T) {
	log := &mockChangeLog{}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	changes, err := tr.TrackChange(context.Background(), "biz-1", nil, testutil.SnackProfile("biz-1"))
	require.NoError(t, err)
	// five scalars, one product, one certification
	assert.Len(t, changes, 7)
	require.Len(t, pub.events, 1)
	assert.Len(t, pub.events[0].Changes, 3)
}

func TestTrackChange_PersistenceFailureIsAtomic(t *testing.T) {
	log := &mockChangeLog{appendFn: func(context.Context, []business.ProfileChange) error {
		return stderrors.New("connection reset")
	}}
	pub := &recordingPublisher{}
	tr := newTestTracker(t, log, pub)

	old := testutil.SnackProfile("biz-1")
	updated := old.Clone()
	updated.Industry = "Agriculture"

	changes, err := tr.TrackChange(context.Background(), "biz-1", old, updated)
	require.Error(t, err)
	assert.Nil(t, changes)
	assert.True(t, errors.IsCode(err, errors.ErrCodeChangeLogWriteFailed))
	assert.True(t, errors.IsPersistence(err))
	assert.Empty(t, log.appended)
	assert.Empty(t, pub.events)
}

func TestTrackChange_SubscriberFailureDoesNotFailTracking(t *testing.T) {
	log := &mockChangeLog{}
	metrics := newCountingMetrics()
	notifier := NewChangeNotifier(testutil.NewMockLogger(), metrics)
	notifier.Subscribe("broken", business.ChangeSubscriberFunc(func(context.Context, *business.SignificantChangeEvent) error {
		return stderrors.New("downstream unavailable")
	}))
	tr := newTestTracker(t, log, notifier)

	old := testutil.SnackProfile("biz-1")
	updated := old.Clone()
	updated.Industry = "Agriculture"

	changes, err := tr.TrackChange(context.Background(), "biz-1", old, updated)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.Len(t, log.appended, 1)
	assert.Equal(t, 1, metrics.notifyFailed["broken"])
}

func TestDetectChanges_DuplicateIDsReportedOnce(t *testing.T) {
	updated := &business.Profile{Products: []business.Product{
		{ID: "p1", Name: "A"},
		{ID: "p1", Name: "B"},
	}}
	changes, err := DetectChanges(nil, updated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "p1", changes[0].ItemID)
}

func TestNewProfileChangeTracker_RequiresChangeLog(t *testing.T) {
	_, err := NewProfileChangeTracker(TrackerDeps{})
	assert.Error(t, err)
}
