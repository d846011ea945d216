package shared

// Recorder receives operational counters from use cases.
type Recorder interface {
	CASAttempt(op, outcome string)
	LockResult(op string, granted, conflicts int)
	Settlement(outcome string)
	Compensation(outcome string)
	ManualRefundsOpen(n int)
}

type NopRecorder struct{}

func (NopRecorder) CASAttempt(string, string)   {}
func (NopRecorder) LockResult(string, int, int) {}
func (NopRecorder) Settlement(string)           {}
func (NopRecorder) Compensation(string)         {}
func (NopRecorder) ManualRefundsOpen(int)       {}
