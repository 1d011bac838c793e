// Package session persists brute-force progress so an interrupted run can be
// resumed without re-testing finished combinations.
package session

import (
	"time"
)

// Status of a session record.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Success is one accepted credential.
type Success struct {
	Username   string    `json:"user"`
	Password   string    `json:"pass"`
	Services   []string  `json:"services"`
	Target     string    `json:"target"`
	FoundAt    time.Time `json:"found_at"`
	Validation string    `json:"validation,omitempty"`
}

// Record is the persisted progress of one run, keyed by its fingerprint.
type Record struct {
	SessionID             string         `json:"session_id"`
	Target                string         `json:"target"`
	Services              []string       `json:"services"`
	WordlistHash          string         `json:"wordlist_hash"`
	TotalCombinations     int            `json:"total_combinations"`
	TestedCombinations    int            `json:"tested_combinations"`
	ResumeIndex           int            `json:"resume_index"`
	SuccessfulCredentials []Success      `json:"successful_credentials"`
	FailedCombinations    int            `json:"failed_combinations"`
	ResumeFailed          int            `json:"resume_failed"`
	CurrentProgress       float64        `json:"current_progress"`
	StartTime             time.Time      `json:"start_time"`
	LastUpdate            time.Time      `json:"last_update"`
	EndTime               *time.Time     `json:"end_time,omitempty"`
	Status                Status         `json:"status"`
	AverageTimePerAttempt float64        `json:"average_time_per_attempt"`
	EstimatedCompletion   *time.Time     `json:"estimated_completion,omitempty"`
	Config                map[string]any `json:"config,omitempty"`
}

// Progress is one checkpoint of the engine's counters.
type Progress struct {
	// Tested counts attempted combinations, including those from earlier runs.
	Tested int
	// ResumeIndex is the prefix of the combo list known to be fully tested.
	ResumeIndex int
	Failed      int
	// ResumeFailed counts the rejections below ResumeIndex.
	ResumeFailed int
	Successes    []Success
}

// Stats summarizes a record for display.
type Stats struct {
	SessionID           string
	Target              string
	Services            []string
	Status              Status
	Progress            float64
	Tested              int
	Total               int
	Remaining           int
	Successes           int
	Failed              int
	Elapsed             time.Duration
	AveragePerAttempt   time.Duration
	EstimatedCompletion *time.Time
}

// Stats returns a summary of the record.
func (r *Record) Stats() Stats {
	remaining := r.TotalCombinations - r.TestedCombinations
	if remaining < 0 {
		remaining = 0
	}
	end := r.LastUpdate
	if r.EndTime != nil {
		end = *r.EndTime
	}
	return Stats{
		SessionID:           r.SessionID,
		Target:              r.Target,
		Services:            r.Services,
		Status:              r.Status,
		Progress:            r.CurrentProgress,
		Tested:              r.TestedCombinations,
		Total:               r.TotalCombinations,
		Remaining:           remaining,
		Successes:           len(r.SuccessfulCredentials),
		Failed:              r.FailedCombinations,
		Elapsed:             end.Sub(r.StartTime),
		AveragePerAttempt:   time.Duration(r.AverageTimePerAttempt * float64(time.Second)),
		EstimatedCompletion: r.EstimatedCompletion,
	}
}

// apply copies p into the record and refreshes the derived fields.
func (r *Record) apply(p Progress, now time.Time) {
	r.TestedCombinations = p.Tested
	r.ResumeIndex = p.ResumeIndex
	r.FailedCombinations = p.Failed
	r.ResumeFailed = p.ResumeFailed
	r.SuccessfulCredentials = dedupeSuccesses(p.Successes)
	r.LastUpdate = now

	if r.TotalCombinations > 0 {
		r.CurrentProgress = float64(r.TestedCombinations) / float64(r.TotalCombinations) * 100
		if r.CurrentProgress > 100 {
			r.CurrentProgress = 100
		}
	}

	r.EstimatedCompletion = nil
	if r.TestedCombinations > 0 {
		elapsed := now.Sub(r.StartTime).Seconds()
		r.AverageTimePerAttempt = elapsed / float64(r.TestedCombinations)
		remaining := r.TotalCombinations - r.TestedCombinations
		if remaining > 0 {
			eta := now.Add(time.Duration(float64(remaining) * r.AverageTimePerAttempt * float64(time.Second)))
			r.EstimatedCompletion = &eta
		}
	}
}

func dedupeSuccesses(in []Success) []Success {
	out := make([]Success, 0, len(in))
	seen := make(map[[2]string]int, len(in))
	for _, s := range in {
		key := [2]string{s.Username, s.Password}
		if i, ok := seen[key]; ok {
			out[i].Services = mergeServices(out[i].Services, s.Services)
			if out[i].Validation == "" {
				out[i].Validation = s.Validation
			}
			continue
		}
		seen[key] = len(out)
		s.Services = append([]string(nil), s.Services...)
		out = append(out, s)
	}
	return out
}

func mergeServices(a, b []string) []string {
	for _, s := range b {
		found := false
		for _, have := range a {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			a = append(a, s)
		}
	}
	return a
}
