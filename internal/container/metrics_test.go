package container

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDeletionMetrics(t *testing.T) {
	deleted := testutil.ToFloat64(deletionAttemptsTotal.WithLabelValues("deleted"))
	suspicious := testutil.ToFloat64(deletionAbortsTotal.WithLabelValues("suspicious"))
	tabs := testutil.ToFloat64(tabsRemovedTotal)

	f := newFixture(sampleTabs()...)
	f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-work"}))

	f.host.broken = true
	f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-shop"}))

	if got := testutil.ToFloat64(deletionAttemptsTotal.WithLabelValues("deleted")) - deleted; got != 1 {
		t.Errorf("expected 1 deleted attempt, got %v", got)
	}
	if got := testutil.ToFloat64(deletionAbortsTotal.WithLabelValues("suspicious")) - suspicious; got != 1 {
		t.Errorf("expected 1 suspicious abort, got %v", got)
	}
	if got := testutil.ToFloat64(tabsRemovedTotal) - tabs; got != 2 {
		t.Errorf("expected 2 tabs removed, got %v", got)
	}
}
