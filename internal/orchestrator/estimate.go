package orchestrator

import "time"

// DefaultETAHorizon is assumed when no job reports a usable start time.
const DefaultETAHorizon = 10 * time.Minute

// QueueEstimate summarizes a what-if workflow for the caller.
type QueueEstimate struct {
	Cost     *Cost     `json:"cost"`
	Ready    bool      `json:"ready"`
	ETA      time.Time `json:"eta"`
	Position int       `json:"position"`
}

// Estimate folds every job's queue position into one summary in a single pass.
//
// Ready starts true and turns false for good once any scheduled job reports
// support other than "available". Position only moves when a job reports
// strictly fewer preceding jobs than the running value, and ETA is refined
// only in that same case, so a job that does not govern the position never
// changes the ETA. Jobs without queue metadata are ignored.
func Estimate(wf *Workflow, now time.Time, horizon time.Duration) QueueEstimate {
	if horizon <= 0 {
		horizon = DefaultETAHorizon
	}
	out := QueueEstimate{Ready: true, ETA: now.Add(horizon)}
	if wf == nil {
		return out
	}
	out.Cost = wf.Cost
	for _, step := range wf.Steps {
		for _, job := range step.Jobs {
			qp := job.QueuePosition
			if qp == nil {
				continue
			}
			if qp.Support != SupportAvailable {
				out.Ready = false
			}
			if qp.PrecedingJobs != nil && *qp.PrecedingJobs < out.Position {
				out.Position = *qp.PrecedingJobs
				if qp.StartAt != nil && qp.StartAt.Before(out.ETA) {
					out.ETA = *qp.StartAt
				}
			}
		}
	}
	return out
}
