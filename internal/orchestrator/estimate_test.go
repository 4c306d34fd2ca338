package orchestrator

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestEstimateZeroJobsKeepsDefaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for name, wf := range map[string]*Workflow{
		"nil":        nil,
		"no steps":   {},
		"empty step": {Steps: []WorkflowStep{{Name: "0"}}},
	} {
		t.Run(name, func(t *testing.T) {
			got := Estimate(wf, now, DefaultETAHorizon)
			if !got.Ready || got.Position != 0 || !got.ETA.Equal(now.Add(10*time.Minute)) {
				t.Fatalf("estimate = %+v, want ready, position 0, eta now+10m", got)
			}
		})
	}
}

func TestEstimateParallelJobs(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	t0 := now.Add(1 * time.Minute)
	t1 := now.Add(3 * time.Minute)
	wf := &Workflow{
		Cost: &Cost{Total: 12},
		Steps: []WorkflowStep{{
			Name: "0",
			Jobs: []Job{
				{ID: "a", QueuePosition: &QueuePosition{Support: "available", PrecedingJobs: intPtr(2), StartAt: timePtr(t1)}},
				{ID: "b", QueuePosition: &QueuePosition{Support: "unavailable", PrecedingJobs: intPtr(0), StartAt: timePtr(t0)}},
			},
		}},
	}

	got := Estimate(wf, now, DefaultETAHorizon)
	if got.Ready {
		t.Fatalf("ready should be false once any job is unavailable")
	}
	if got.Position != 0 {
		t.Fatalf("position = %d, want 0", got.Position)
	}
	// Neither job lowers the running position, so the eta keeps its default.
	if !got.ETA.Equal(now.Add(DefaultETAHorizon)) {
		t.Fatalf("eta = %s, want default horizon", got.ETA)
	}
	if got.Cost == nil || got.Cost.Total != 12 {
		t.Fatalf("cost = %+v, want passthrough", got.Cost)
	}
}

func TestEstimateReadyIsSticky(t *testing.T) {
	now := time.Now()
	wf := &Workflow{Steps: []WorkflowStep{
		{Jobs: []Job{{QueuePosition: &QueuePosition{Support: "unavailable"}}}},
		{Jobs: []Job{{QueuePosition: &QueuePosition{Support: "available"}}, {}}},
	}}
	if got := Estimate(wf, now, time.Minute); got.Ready {
		t.Fatalf("a later available job must not reset ready")
	}
}

func TestEstimateSkipsJobsWithoutQueuePosition(t *testing.T) {
	now := time.Now()
	wf := &Workflow{Steps: []WorkflowStep{{Jobs: []Job{{ID: "x"}, {ID: "y"}}}}}
	got := Estimate(wf, now, 5*time.Minute)
	if !got.Ready || !got.ETA.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("estimate = %+v, want untouched defaults", got)
	}
}

func TestEstimateETAFollowsPositionImprovement(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	early := now.Add(2 * time.Minute)
	// A negative count is the only value below the zero start; it governs both fields.
	wf := &Workflow{Steps: []WorkflowStep{{Jobs: []Job{
		{QueuePosition: &QueuePosition{Support: "available", PrecedingJobs: intPtr(-1), StartAt: timePtr(early)}},
		{QueuePosition: &QueuePosition{Support: "available", StartAt: timePtr(now)}},
	}}}}
	got := Estimate(wf, now, DefaultETAHorizon)
	if got.Position != -1 {
		t.Fatalf("position = %d, want -1", got.Position)
	}
	if !got.ETA.Equal(early) {
		t.Fatalf("eta = %s, want %s; a job that does not improve position must not move eta", got.ETA, early)
	}
}
