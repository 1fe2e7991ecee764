package services

// ItemError records why one item of a batch was not processed.
type ItemError struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Err   error  `json:"-"`
}

// BatchResult accumulates per-item outcomes of a best-effort batch. A failing
// item is recorded and the batch moves on.
type BatchResult struct {
	Attempted int
	Succeeded int
	Skipped   int
	Errors    []ItemError
}

func (b *BatchResult) succeed() {
	b.Attempted++
	b.Succeeded++
}

func (b *BatchResult) skip() {
	b.Attempted++
	b.Skipped++
}

func (b *BatchResult) fail(index int, key string, err error) {
	b.Attempted++
	b.Errors = append(b.Errors, ItemError{Index: index, Key: key, Err: err})
}

// Failed returns how many items failed.
func (b BatchResult) Failed() int {
	return len(b.Errors)
}
