package orchestrator

import (
	"encoding/json"
	"time"
)

// Event classes every generation callback subscribes to.
const (
	EventJobAll      = "job:*"
	EventWorkflowAll = "workflow:*"
)

// Step types understood by the orchestration service.
const (
	StepTypeImageGen = "imageGen"
	StepTypeVideoGen = "videoGen"
)

// Step is one unit of a workflow submission.
type Step struct {
	Type  string          `json:"$type"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input"`
}

// Tips are optional incentive amounts attached to a submission.
type Tips struct {
	Civitai  float64 `json:"civitai"`
	Creators float64 `json:"creators"`
}

// Callback registers a URL the service notifies for matching event classes.
type Callback struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"type"`
}

// Submission is the body posted to the workflows endpoint. It is built once
// per request and not modified after it is sent.
type Submission struct {
	Tags      []string   `json:"tags,omitempty"`
	Steps     []Step     `json:"steps"`
	Tips      *Tips      `json:"tips,omitempty"`
	Callbacks []Callback `json:"callbacks,omitempty"`
}

// Cost is the service's price breakdown for a workflow.
type Cost struct {
	Base    float64            `json:"base"`
	Total   float64            `json:"total"`
	Factors map[string]float64 `json:"factors,omitempty"`
}

// QueuePosition is scheduling metadata reported for a single job.
type QueuePosition struct {
	PrecedingJobs *int       `json:"precedingJobs,omitempty"`
	StartAt       *time.Time `json:"startAt,omitempty"`
	Support       string     `json:"support"`
}

// SupportAvailable marks a job whose resources are ready to run it.
const SupportAvailable = "available"

type Job struct {
	ID            string         `json:"id"`
	Status        string         `json:"status,omitempty"`
	QueuePosition *QueuePosition `json:"queuePosition,omitempty"`
}

type WorkflowStep struct {
	Name   string          `json:"name"`
	Type   string          `json:"$type"`
	Status string          `json:"status,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Jobs   []Job           `json:"jobs,omitempty"`
}

// Workflow is the handle returned by the orchestration service, for both
// real and what-if submissions.
type Workflow struct {
	ID        string         `json:"id"`
	Status    string         `json:"status,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	Cost      *Cost          `json:"cost,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Steps     []WorkflowStep `json:"steps,omitempty"`
}
