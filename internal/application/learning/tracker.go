package learning

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// scalarFields lists the scalar profile fields in diff order.
var scalarFields = []struct {
	name         string
	significance business.Significance
	get          func(*business.Profile) string
}{
	{business.FieldName, business.SignificanceMedium, func(p *business.Profile) string { return p.Name }},
	{business.FieldWebsite, business.SignificanceMedium, func(p *business.Profile) string { return p.Website }},
	{business.FieldIndustry, business.SignificanceHigh, func(p *business.Profile) string { return p.Industry }},
	{business.FieldSize, business.SignificanceMedium, func(p *business.Profile) string { return string(p.Size) }},
	{business.FieldExportExperience, business.SignificanceMedium, func(p *business.Profile) string { return string(p.ExportExperience) }},
}

// TrackerDeps holds the collaborators of a ProfileChangeTracker.
type TrackerDeps struct {
	ChangeLog business.ChangeLog
	Publisher ChangePublisher
	Logger    logging.Logger
	Metrics   MetricsRecorder
	Clock     Clock
	NewID     IDGenerator
}

// ProfileChangeTracker diffs profile snapshots, appends the differences to
// the change log and announces HIGH significance changes.
type ProfileChangeTracker struct {
	changes   business.ChangeLog
	publisher ChangePublisher
	logger    logging.Logger
	metrics   MetricsRecorder
	now       Clock
	newID     IDGenerator
}

// NewProfileChangeTracker wires a tracker. ChangeLog is required; a nil
// Publisher disables notification.
func NewProfileChangeTracker(deps TrackerDeps) (*ProfileChangeTracker, error) {
	if deps.ChangeLog == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "change tracker requires a change log")
	}
	t := &ProfileChangeTracker{
		changes:   deps.ChangeLog,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Clock,
		newID:     deps.NewID,
	}
	if t.logger == nil {
		t.logger = logging.NewNopLogger()
	}
	t.logger = t.logger.Named("change_tracker")
	if t.metrics == nil {
		t.metrics = NoopMetrics()
	}
	if t.now == nil {
		t.now = systemClock
	}
	if t.newID == nil {
		t.newID = newUUID
	}
	return t, nil
}

// TrackChange records every difference between oldProfile and newProfile for
// businessID. A nil snapshot is treated as an empty profile, so a first save
// reports each populated scalar as modified and each item as added. The
// changes are appended to the log as one unit; when the append fails nothing
// is published and the error is returned. After a successful append the HIGH
// significance subset, if any, is published to subscribers.
func (t *ProfileChangeTracker) TrackChange(ctx context.Context, businessID string, oldProfile, newProfile *business.Profile) ([]business.ProfileChange, error) {
	changes, err := t.record(ctx, businessID, oldProfile, newProfile)
	if err != nil {
		return nil, err
	}
	t.announce(ctx, businessID, changes)
	return changes, nil
}

// record diffs the snapshots and appends the result without notifying anyone.
func (t *ProfileChangeTracker) record(ctx context.Context, businessID string, oldProfile, newProfile *business.Profile) ([]business.ProfileChange, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "business id is required")
	}

	changes, err := DetectChanges(oldProfile, newProfile)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return []business.ProfileChange{}, nil
	}

	ts := t.now().UTC()
	for i := range changes {
		changes[i].ID = t.newID()
		changes[i].BusinessID = businessID
		changes[i].Timestamp = ts
	}

	if err := t.changes.AppendChanges(ctx, changes); err != nil {
		t.logger.Error("failed to append profile changes",
			logging.String("business_id", businessID),
			logging.Int("changes", len(changes)),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeChangeLogWriteFailed, "append profile changes")
	}
	t.recordMetrics(changes)
	return changes, nil
}

// announce publishes the HIGH significance subset of recorded changes.
func (t *ProfileChangeTracker) announce(ctx context.Context, businessID string, changes []business.ProfileChange) {
	if len(changes) == 0 {
		return
	}
	high := business.FilterBySignificance(changes, business.SignificanceHigh)
	if len(high) > 0 && t.publisher != nil {
		t.publisher.Publish(ctx, business.NewSignificantChangeEvent(businessID, high))
	}

	t.logger.Debug("profile changes tracked",
		logging.String("business_id", businessID),
		logging.Int("changes", len(changes)),
		logging.Int("significant", len(high)))
}

func (t *ProfileChangeTracker) recordMetrics(changes []business.ProfileChange) {
	counts := make(map[business.Significance]int, 3)
	for _, c := range changes {
		counts[c.Significance]++
	}
	for s, n := range counts {
		t.metrics.IncChangesTracked(string(s), n)
	}
}

// DetectChanges returns the differences between two snapshots without
// identity or timestamp. Scalar fields come first in a fixed order, then
// products and certifications matched by ID.
func DetectChanges(oldProfile, newProfile *business.Profile) ([]business.ProfileChange, error) {
	if oldProfile == nil {
		oldProfile = &business.Profile{}
	}
	if newProfile == nil {
		newProfile = &business.Profile{}
	}

	var out []business.ProfileChange
	for _, f := range scalarFields {
		ov, nv := f.get(oldProfile), f.get(newProfile)
		if ov == nv {
			continue
		}
		out = append(out, business.ProfileChange{
			Field:        f.name,
			OldValue:     ov,
			NewValue:     nv,
			ChangeType:   business.ChangeModified,
			Significance: f.significance,
		})
	}

	products, err := diffItems(business.FieldProducts,
		itemsOf(oldProfile.Products, func(p business.Product) string { return p.ID }),
		itemsOf(newProfile.Products, func(p business.Product) string { return p.ID }))
	if err != nil {
		return nil, err
	}
	out = append(out, products...)

	certs, err := diffItems(business.FieldCertifications,
		itemsOf(oldProfile.Certifications, func(c business.Certification) string { return c.ID }),
		itemsOf(newProfile.Certifications, func(c business.Certification) string { return c.ID }))
	if err != nil {
		return nil, err
	}
	return append(out, certs...), nil
}

type keyedItem struct {
	id   string
	item interface{}
}

func itemsOf[T any](items []T, id func(T) string) []keyedItem {
	out := make([]keyedItem, 0, len(items))
	for _, it := range items {
		out = append(out, keyedItem{id: id(it), item: it})
	}
	return out
}

// diffItems matches list items by ID. Additions and modifications follow the
// new list order, removals follow the old list order. Items are compared by
// their JSON encoding, which is also what the change records carry.
func diffItems(field string, oldItems, newItems []keyedItem) ([]business.ProfileChange, error) {
	oldByID := make(map[string]string, len(oldItems))
	for _, it := range oldItems {
		enc, err := encodeItem(it.item)
		if err != nil {
			return nil, err
		}
		oldByID[it.id] = enc
	}

	var out []business.ProfileChange
	seen := make(map[string]struct{}, len(newItems))
	for _, it := range newItems {
		if _, dup := seen[it.id]; dup {
			continue
		}
		seen[it.id] = struct{}{}
		enc, err := encodeItem(it.item)
		if err != nil {
			return nil, err
		}
		prev, existed := oldByID[it.id]
		switch {
		case !existed:
			out = append(out, business.ProfileChange{
				Field: field, ItemID: it.id, NewValue: enc,
				ChangeType: business.ChangeAdded, Significance: business.SignificanceHigh,
			})
		case prev != enc:
			out = append(out, business.ProfileChange{
				Field: field, ItemID: it.id, OldValue: prev, NewValue: enc,
				ChangeType: business.ChangeModified, Significance: business.SignificanceMedium,
			})
		}
	}
	for _, it := range oldItems {
		if _, ok := seen[it.id]; ok {
			continue
		}
		seen[it.id] = struct{}{}
		out = append(out, business.ProfileChange{
			Field: field, ItemID: it.id, OldValue: oldByID[it.id],
			ChangeType: business.ChangeRemoved, Significance: business.SignificanceHigh,
		})
	}
	return out, nil
}

func encodeItem(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encode profile item")
	}
	return string(b), nil
}
