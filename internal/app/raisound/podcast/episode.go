package podcast

import "time"

// Status of episode download
type Status int

const (
	// Succeeded status for episodes written to the destination folder in this run
	Succeeded Status = iota
	// Skipped status for episodes already present in the destination folder
	Skipped
	// Failed status for episodes which could not be resolved, fetched or written
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Origin tells where fetched bytes came from
type Origin string

const (
	// FromCache bytes were served by the cache store
	FromCache Origin = "cache"
	// FromNetwork bytes were fetched over http and stored afterwards
	FromNetwork Origin = "network"
)

// ShowPage is a fetched show page, immutable once fetched
type ShowPage struct {
	URL  string
	Key  string
	HTML []byte
}

// Episode of show, as found on the show page
type Episode struct {
	Ordinal  int
	Title    string
	AudioURL string
}

// Target is a destination path for an episode
type Target struct {
	Path    string
	Episode Episode
}

// Result of a single episode download
type Result struct {
	Episode  Episode
	Path     string
	Status   Status
	Origin   Origin
	Size     int64
	Duration time.Duration
	Err      error
}

// Report collects results in episode order
type Report struct {
	Show    string
	Results []Result
}

// Add result to report
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Counts returns number of succeeded, skipped and failed episodes
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case Succeeded:
			succeeded++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	return succeeded, skipped, failed
}
