package model

// Verdict is the classifier's decision for one callable. A zero Verdict
// means "safe, no reason". Verdicts are never mutated after creation.
type Verdict struct {
	Unsafe bool
	Reason string
}

// UnsafeVerdict builds an unsafe verdict with the given reason.
func UnsafeVerdict(reason string) Verdict {
	return Verdict{Unsafe: true, Reason: reason}
}
