package learning

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
)

func TestChangeNotifier_DeliversInOrderAndSurvivesFailures(t *testing.T) {
	logger := testutil.NewMockLogger()
	metrics := newCountingMetrics()
	n := NewChangeNotifier(logger, metrics)

	var calls []string
	n.Subscribe("first", business.ChangeSubscriberFunc(func(context.Context, *business.SignificantChangeEvent) error {
		calls = append(calls, "first")
		return stderrors.New("boom")
	}))
	n.Subscribe("panicky", business.ChangeSubscriberFunc(func(context.Context, *business.SignificantChangeEvent) error {
		calls = append(calls, "panicky")
		panic("nil map")
	}))
	n.Subscribe("last", business.ChangeSubscriberFunc(func(_ context.Context, e *business.SignificantChangeEvent) error {
		calls = append(calls, "last:"+e.BusinessID)
		return nil
	}))
	n.Subscribe("ignored", nil)
	assert.Equal(t, 3, n.SubscriberCount())

	event := business.NewSignificantChangeEvent("biz-9", []business.ProfileChange{{Field: business.FieldIndustry}})
	assert.NotPanics(t, func() { n.Publish(context.Background(), event) })

	assert.Equal(t, []string{"first", "panicky", "last:biz-9"}, calls)
	assert.Equal(t, 1, metrics.notifyFailed["first"])
	assert.Equal(t, 1, metrics.notifyFailed["panicky"])
	assert.Equal(t, 2, logger.Count("warn"))
}

func TestChangeNotifier_NoSubscribers(t *testing.T) {
	n := NewChangeNotifier(nil, nil)
	assert.NotPanics(t, func() {
		n.Publish(context.Background(), business.NewSignificantChangeEvent("biz", nil))
		n.Publish(context.Background(), nil)
	})
}
