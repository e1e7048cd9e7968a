// Package actions reads failed GitHub Actions runs, their job logs and the
// workflow definition for the workflow healer.
package actions

import (
	"strings"
	"time"
)

// Conclusion values reported for runs and jobs.
const (
	ConclusionFailure   = "failure"
	ConclusionSuccess   = "success"
	ConclusionCancelled = "cancelled"
	ConclusionTimedOut  = "timed_out"
)

// Run is a workflow run.
type Run struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	Path         string    `json:"path"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	RunNumber    int       `json:"run_number"`
	Event        string    `json:"event"`
	HeadBranch   string    `json:"head_branch"`
	HeadSHA      string    `json:"head_sha"`
	CreatedAt    time.Time `json:"created_at"`
	HTMLURL      string    `json:"html_url"`
}

// WorkflowPath returns the repository path of the workflow file. Runs
// report it as ".github/workflows/ci.yml@refs/heads/main" for reusable
// and dynamic workflows.
func (r Run) WorkflowPath() string {
	path, _, _ := strings.Cut(r.Path, "@")
	return path
}

type runsResponse struct {
	TotalCount int   `json:"total_count"`
	Runs       []Run `json:"workflow_runs"`
}

// Job is one job of a run.
type Job struct {
	ID          int64     `json:"id"`
	RunID       int64     `json:"run_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Conclusion  string    `json:"conclusion"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Steps       []Step    `json:"steps"`
	HTMLURL     string    `json:"html_url"`
}

// Step is one step of a job.
type Step struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Number     int    `json:"number"`
}

// Failed reports whether the job failed outright.
func (j Job) Failed() bool {
	return j.Conclusion == ConclusionFailure
}

// FailedStep returns the first failed step name, or "".
func (j Job) FailedStep() string {
	for _, s := range j.Steps {
		if s.Conclusion == ConclusionFailure {
			return s.Name
		}
	}
	return ""
}

type jobsResponse struct {
	TotalCount int   `json:"total_count"`
	Jobs       []Job `json:"jobs"`
}

// FirstFailedJob returns the first job whose conclusion is failure.
func FirstFailedJob(jobs []Job) (Job, bool) {
	for _, j := range jobs {
		if j.Failed() {
			return j, true
		}
	}
	return Job{}, false
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type userResponse struct {
	Login string `json:"login"`
}
