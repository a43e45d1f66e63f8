package backtest

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"EventCast/internal/domain/models"
)

func sampleAt(hit bool, horizon string, tier models.ConfidenceTier) Sample {
	return Sample{
		TargetID: "t1",
		Horizon:  horizon,
		AsOf:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Hit:      hit,
		Tier:     tier,
		Regime:   models.RegimeChoppy,
		Source:   models.SourceBaseline,
	}
}

func TestBuildReportSegments(t *testing.T) {
	samples := []Sample{
		sampleAt(true, "1d", models.TierHigh),
		sampleAt(true, "1d", models.TierHigh),
		sampleAt(false, "7d", models.TierLow),
		sampleAt(true, "7d", models.TierLow),
	}
	r := BuildReport(samples)

	if r.Overall.N != 4 || r.Overall.Hits != 3 {
		t.Fatalf("overall %+v", r.Overall)
	}
	if r.Overall.Accuracy != 0.75 {
		t.Fatalf("accuracy %v, want 0.75", r.Overall.Accuracy)
	}
	wantZ := (0.75 - 0.5) * 2 * math.Sqrt(4)
	if math.Abs(r.Overall.ZScore-wantZ) > 1e-12 {
		t.Fatalf("z-score %v, want %v", r.Overall.ZScore, wantZ)
	}
	if r.ByHorizon["1d"].Accuracy != 1.0 {
		t.Fatalf("1d accuracy %v", r.ByHorizon["1d"].Accuracy)
	}
	if r.ByHorizon["7d"].N != 2 || r.ByHorizon["7d"].Hits != 1 {
		t.Fatalf("7d segment %+v", r.ByHorizon["7d"])
	}
	if r.ByTier[string(models.TierHigh)].N != 2 {
		t.Fatalf("tier segment %+v", r.ByTier)
	}
}

func TestReportWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")

	r := BuildReport([]Sample{
		sampleAt(true, "1d", models.TierMedium),
		sampleAt(false, "1d", models.TierMedium),
	})
	if err := r.WriteCSV(path); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "segment,key,n,hits,accuracy,z_score") {
		t.Fatalf("missing header: %q", s)
	}
	if !strings.Contains(s, "overall,all,2,1,0.5000") {
		t.Fatalf("missing overall row: %q", s)
	}
	if !strings.Contains(s, "horizon,1d,2,1") {
		t.Fatalf("missing horizon row: %q", s)
	}
}
