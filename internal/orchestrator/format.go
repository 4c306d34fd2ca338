package orchestrator

import (
	"encoding/json"
	"time"
)

type FormattedJob struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type FormattedStep struct {
	Name   string          `json:"name"`
	Type   string          `json:"$type"`
	Status string          `json:"status,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Jobs   []FormattedJob  `json:"jobs"`
}

// FormattedWorkflow is the client-facing view of a submitted workflow. Queue
// metadata is dropped; callers follow progress through the signal callback.
type FormattedWorkflow struct {
	ID        string          `json:"id"`
	Status    string          `json:"status,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	Cost      *Cost           `json:"cost,omitempty"`
	Tags      []string        `json:"tags"`
	Steps     []FormattedStep `json:"steps"`
}

func Format(wf *Workflow) FormattedWorkflow {
	if wf == nil {
		return FormattedWorkflow{Tags: []string{}, Steps: []FormattedStep{}}
	}
	out := FormattedWorkflow{
		ID:        wf.ID,
		Status:    wf.Status,
		CreatedAt: wf.CreatedAt,
		Cost:      wf.Cost,
		Tags:      append([]string{}, wf.Tags...),
		Steps:     make([]FormattedStep, 0, len(wf.Steps)),
	}
	for _, step := range wf.Steps {
		fs := FormattedStep{
			Name:   step.Name,
			Type:   step.Type,
			Status: step.Status,
			Params: step.Input,
			Jobs:   make([]FormattedJob, 0, len(step.Jobs)),
		}
		for _, job := range step.Jobs {
			fs.Jobs = append(fs.Jobs, FormattedJob{ID: job.ID, Status: job.Status})
		}
		out.Steps = append(out.Steps, fs)
	}
	return out
}
