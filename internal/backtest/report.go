package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

// Accuracy summarizes directional hit rate for one segment, with a
// z-score of the observed proportion against the 0.5 random baseline.
type Accuracy struct {
	N        int     `json:"n"`
	Hits     int     `json:"hits"`
	Accuracy float64 `json:"accuracy"`
	ZScore   float64 `json:"z_score"`
}

// Report is the aggregated backtest output: overall accuracy plus
// breakdowns by horizon, regime, confidence tier, and target.
type Report struct {
	Overall   Accuracy            `json:"overall"`
	ByHorizon map[string]Accuracy `json:"by_horizon"`
	ByRegime  map[string]Accuracy `json:"by_regime"`
	ByTier    map[string]Accuracy `json:"by_tier"`
	ByTarget  map[string]Accuracy `json:"by_target"`
	BySource  map[string]Accuracy `json:"by_source"`
	Samples   []Sample            `json:"samples"`
}

// BuildReport aggregates scored samples into the report.
func BuildReport(samples []Sample) *Report {
	r := &Report{
		ByHorizon: make(map[string]Accuracy),
		ByRegime:  make(map[string]Accuracy),
		ByTier:    make(map[string]Accuracy),
		ByTarget:  make(map[string]Accuracy),
		BySource:  make(map[string]Accuracy),
		Samples:   samples,
	}
	for _, s := range samples {
		r.Overall = r.Overall.add(s.Hit)
		r.ByHorizon[s.Horizon] = r.ByHorizon[s.Horizon].add(s.Hit)
		r.ByRegime[string(s.Regime)] = r.ByRegime[string(s.Regime)].add(s.Hit)
		r.ByTier[string(s.Tier)] = r.ByTier[string(s.Tier)].add(s.Hit)
		r.ByTarget[s.TargetID] = r.ByTarget[s.TargetID].add(s.Hit)
		r.BySource[string(s.Source)] = r.BySource[string(s.Source)].add(s.Hit)
	}
	r.Overall = r.Overall.finalize()
	finalizeAll(r.ByHorizon)
	finalizeAll(r.ByRegime)
	finalizeAll(r.ByTier)
	finalizeAll(r.ByTarget)
	finalizeAll(r.BySource)
	return r
}

func (a Accuracy) add(hit bool) Accuracy {
	a.N++
	if hit {
		a.Hits++
	}
	return a
}

func (a Accuracy) finalize() Accuracy {
	if a.N == 0 {
		return a
	}
	a.Accuracy = float64(a.Hits) / float64(a.N)
	// One-sample z-test on proportion against p0 = 0.5.
	a.ZScore = (a.Accuracy - 0.5) * 2 * math.Sqrt(float64(a.N))
	return a
}

func finalizeAll(m map[string]Accuracy) {
	for k, v := range m {
		m[k] = v.finalize()
	}
}

// WriteJSON writes the full report, samples included.
func (r *Report) WriteJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteCSV writes the segment breakdowns as flat rows.
func (r *Report) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"segment", "key", "n", "hits", "accuracy", "z_score"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	writeRow := func(segment, key string, a Accuracy) error {
		return w.Write([]string{
			segment,
			key,
			strconv.Itoa(a.N),
			strconv.Itoa(a.Hits),
			strconv.FormatFloat(a.Accuracy, 'f', 4, 64),
			strconv.FormatFloat(a.ZScore, 'f', 4, 64),
		})
	}
	if err := writeRow("overall", "all", r.Overall); err != nil {
		return err
	}
	for _, seg := range []struct {
		name string
		m    map[string]Accuracy
	}{
		{"horizon", r.ByHorizon},
		{"regime", r.ByRegime},
		{"tier", r.ByTier},
		{"target", r.ByTarget},
		{"source", r.BySource},
	} {
		for _, key := range sortedKeys(seg.m) {
			if err := writeRow(seg.name, key, seg.m[key]); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func sortedKeys(m map[string]Accuracy) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
