package warehouse

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/testutils"
)

func TestRetentionConfigValidate(t *testing.T) {
	test.That(t, RetentionConfig{MaxAge: time.Hour, Schedule: "1m"}.Validate(), test.ShouldBeNil)
	test.That(t, RetentionConfig{Schedule: "1m"}.Validate(), test.ShouldNotBeNil)
	test.That(t, RetentionConfig{MaxAge: time.Hour}.Validate(), test.ShouldNotBeNil)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s, mock := openTestStore(t, 0)
	model := testutils.ArmBaseModel(t)

	old, err := s.Save(ctx, "old", armTrajectory(t, model))
	test.That(t, err, test.ShouldBeNil)
	_, _, err = s.Message(ctx, old)
	test.That(t, err, test.ShouldBeNil)
	mock.Add(2 * time.Hour)
	_, err = s.Save(ctx, "new", armTrajectory(t, model))
	test.That(t, err, test.ShouldBeNil)

	n, err := s.Prune(ctx, time.Hour)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 1)

	records, err := s.List(ctx, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, records, test.ShouldHaveLength, 1)
	test.That(t, records[0].Name, test.ShouldEqual, "new")

	s.mu.Lock()
	test.That(t, s.cache.Len(), test.ShouldEqual, 0)
	s.mu.Unlock()

	n, err = s.Prune(ctx, time.Hour)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
}

func TestPruner(t *testing.T) {
	ctx := context.Background()
	s, mock := openTestStore(t, 0)
	logger := logging.NewTestLogger(t)

	_, err := NewPruner(s, RetentionConfig{MaxAge: time.Hour, Schedule: "not a schedule"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPruner(s, RetentionConfig{Schedule: "1h"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = s.Save(ctx, "old", armTrajectory(t, testutils.ArmBaseModel(t)))
	test.That(t, err, test.ShouldBeNil)
	mock.Add(2 * time.Hour)

	p, err := NewPruner(s, RetentionConfig{MaxAge: time.Hour, Schedule: "10ms"}, logger)
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	defer func() { test.That(t, p.Close(), test.ShouldBeNil) }()

	deadline := time.After(5 * time.Second)
	for p.Pruned() == 0 {
		select {
		case <-deadline:
			t.Fatal("pruner did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	count, err := s.Count(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 0)
}
