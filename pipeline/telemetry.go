package pipeline

import (
	"fmt"

	"github.com/thiremani/cstage/stage"
)

// Telemetry is the summary shown next to a run's output.
type Telemetry struct {
	Status          string
	Time            string
	SuccessRate     string
	TimeComplexity  string
	SpaceComplexity string
}

const unknownComplexity = "n/a"

func newTelemetry(r *Run) Telemetry {
	t := Telemetry{
		Time:            fmt.Sprintf("%.2f ms", float64(r.Elapsed.Microseconds())/1000),
		TimeComplexity:  unknownComplexity,
		SpaceComplexity: unknownComplexity,
	}
	if r.Success {
		t.Status = "✅ " + r.Operation + " completed"
		t.SuccessRate = "100%"
	} else {
		t.Status = "❌ " + r.Operation + " failed"
		t.SuccessRate = "0%"
	}

	// the unoptimized IR keeps the loops and calls the source wrote
	if ir, ok := r.Stage(stage.IR); ok && ir.OK() {
		if st, err := Analyze(ir.Output); err == nil {
			t.TimeComplexity = st.TimeComplexity()
			t.SpaceComplexity = st.SpaceComplexity()
		}
	}
	return t
}

// Lines renders t one field per line.
func (t Telemetry) Lines() []string {
	return []string{
		"Status: " + t.Status,
		"Time: " + t.Time,
		"Success Rate: " + t.SuccessRate,
		"Time Complexity: " + t.TimeComplexity,
		"Space Complexity: " + t.SpaceComplexity,
	}
}
