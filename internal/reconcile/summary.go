package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies one (date, slot) reconciliation
type Outcome int

const (
	// OutcomeFilled means the file was downloaded and recorded this pass
	OutcomeFilled Outcome = iota
	// OutcomeAlready means the ledger already held the file
	OutcomeAlready
	// OutcomeNoData means the exchange published nothing for the date
	OutcomeNoData
	// OutcomeFailed means every attempt this pass failed; a later pass
	// will pick the slot up again because nothing was recorded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeAlready:
		return "already"
	case OutcomeNoData:
		return "no_data"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is one (date, slot) outcome
type Result struct {
	Date    string
	Slot    string
	Outcome Outcome
	Path    string
	Err     error
}

// SlotCounts aggregates outcomes for one slot
type SlotCounts struct {
	Filled  int
	Already int
	NoData  int
	Failed  int
}

// Summary aggregates one reconciliation pass. It is safe for
// concurrent Record calls from pool workers.
type Summary struct {
	RunID string
	Year  int
	Mode  string

	mu       sync.Mutex
	started  time.Time
	Duration time.Duration
	Dates    int
	BySlot   map[string]*SlotCounts
	Failures []Result
}

// NewSummary starts a pass summary
func NewSummary(year int, mode string) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Year:    year,
		Mode:    mode,
		started: time.Now(),
		BySlot:  make(map[string]*SlotCounts),
	}
}

// Record folds one result into the summary
func (s *Summary) Record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.BySlot[r.Slot]
	if !ok {
		counts = &SlotCounts{}
		s.BySlot[r.Slot] = counts
	}

	switch r.Outcome {
	case OutcomeFilled:
		counts.Filled++
	case OutcomeAlready:
		counts.Already++
	case OutcomeNoData:
		counts.NoData++
	case OutcomeFailed:
		counts.Failed++
		s.Failures = append(s.Failures, r)
	}
}

// Finish stamps the pass duration
func (s *Summary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.started).Round(time.Millisecond)
}

// Totals sums the per-slot counters
func (s *Summary) Totals() SlotCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t SlotCounts
	for _, c := range s.BySlot {
		t.Filled += c.Filled
		t.Already += c.Already
		t.NoData += c.NoData
		t.Failed += c.Failed
	}
	return t
}
