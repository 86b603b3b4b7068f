package models

// WorkItem is one state-registration identifier (IE) queued for DAE filling.
type WorkItem struct {
	IE       string   `json:"ie"`
	IEDigits string   `json:"ie_digits"` // digits only, always 9 characters
	Amount   *float64 `json:"amount,omitempty"`
	RefMonth int      `json:"ref_month"`
	RefYear  int      `json:"ref_year"`
}

// Skippable reports whether the item has no payable amount and must be
// excluded from the batch without a ledger entry.
func (w WorkItem) Skippable() bool {
	return w.Amount == nil || *w.Amount == 0
}

// FailedItem pairs an IE with the human-readable reason it failed.
type FailedItem struct {
	IE     string `json:"ie"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome ledger of one batch run. Every non-skipped
// item lands in exactly one of the two lists.
type BatchResult struct {
	Succeeded []string     `json:"succeeded"`
	Failed    []FailedItem `json:"failed"`
}

// NewBatchResult returns an empty ledger with non-nil slices so the JSON
// response always carries both arrays.
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Succeeded: []string{},
		Failed:    []FailedItem{},
	}
}

// AddSuccess appends an IE that completed every step.
func (r *BatchResult) AddSuccess(ie string) {
	r.Succeeded = append(r.Succeeded, ie)
}

// AddFailure appends an IE with its failure reason.
func (r *BatchResult) AddFailure(ie, reason string) {
	r.Failed = append(r.Failed, FailedItem{IE: ie, Reason: reason})
}
