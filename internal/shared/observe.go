package shared

// OperationRecorder observes the outcome of ledger mutations.
type OperationRecorder interface {
	ObserveOperation(op string, err error)
}

// Observe reports op to r when r is configured.
func Observe(r OperationRecorder, op string, err error) {
	if r != nil {
		r.ObserveOperation(op, err)
	}
}
