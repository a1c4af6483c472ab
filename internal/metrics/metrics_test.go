package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/pdfscrub/internal/model"
)

// TestRecorderStageFinished tests stage counters and durations.
func TestRecorderStageFinished(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.StageFinished("sanitize", model.StageCompleted, 20*time.Millisecond)
	r.StageFinished("sanitize", model.StageCompleted, 30*time.Millisecond)
	r.StageFinished("external_pre", model.StageFailedRecovered, time.Second)
	r.StageFinished("rebuild", model.StageSkipped, 0)

	if got := testutil.ToFloat64(r.stageTotal.WithLabelValues("sanitize", "completed")); got != 2 {
		t.Errorf("expected 2 completed sanitize stages, got %v", got)
	}
	if got := testutil.ToFloat64(r.stageTotal.WithLabelValues("external_pre", "failed_recovered")); got != 1 {
		t.Errorf("expected 1 recovered external stage, got %v", got)
	}
	if got := testutil.ToFloat64(r.stageTotal.WithLabelValues("rebuild", "skipped")); got != 1 {
		t.Errorf("expected 1 skipped rebuild stage, got %v", got)
	}
	// Skipped stages do not add a duration sample.
	if got := testutil.CollectAndCount(r.stageDuration); got != 2 {
		t.Errorf("expected durations for 2 stages, got %d", got)
	}
}

// TestRecorderFileFinished tests file counters.
func TestRecorderFileFinished(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.FileFinished(model.StatusCleaned, time.Second)
	r.FileFinished(model.StatusCleaned, 2*time.Second)
	r.FileFinished(model.StatusFailed, time.Second)
	r.FileFinished(model.StatusInvalid, 0)

	tests := []struct {
		status model.FileStatus
		want   float64
	}{
		{model.StatusCleaned, 2},
		{model.StatusFailed, 1},
		{model.StatusInvalid, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(r.filesTotal.WithLabelValues(string(tt.status))); got != tt.want {
			t.Errorf("status %s: expected %v, got %v", tt.status, tt.want, got)
		}
	}
}

// TestRecorderRecordReport tests sanitizer and rebuilder counts.
func TestRecorderRecordReport(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordReport(&model.FileReport{
		Removals: []model.Removal{
			{Location: model.CatalogLocation(), Key: "OpenAction"},
			{Location: model.PageLocation(1), Key: "AA"},
			{Location: model.PageLocation(2), Key: "AA"},
		},
		StreamsEmptied: 3,
		Rebuild:        &model.RebuildStats{Fallbacks: 1},
	})
	r.RecordReport(nil)

	if got := testutil.ToFloat64(r.removalsTotal.WithLabelValues("AA")); got != 2 {
		t.Errorf("expected 2 AA removals, got %v", got)
	}
	if got := testutil.ToFloat64(r.streamsEmptied); got != 3 {
		t.Errorf("expected 3 emptied streams, got %v", got)
	}
	if got := testutil.ToFloat64(r.rebuildFallbacks); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}
}

// TestRecorderWriteTextfile tests the text exposition output.
func TestRecorderWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.FileFinished(model.StatusCleaned, time.Second)
	r.StageFinished("verify", model.StageCompleted, time.Millisecond)

	path := filepath.Join(t.TempDir(), "pdfscrub.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`pdfscrub_file_total{status="cleaned"} 1`,
		`pdfscrub_stage_total{stage="verify",state="completed"} 1`,
		"# HELP pdfscrub_stage_duration_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in textfile output:\n%s", want, out)
		}
	}
}
