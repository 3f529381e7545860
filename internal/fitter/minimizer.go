package fitter

// MinimizeResult is what the external optimizer reports for one attempt.
type MinimizeResult struct {
	Params    []float64
	Value     float64
	Converged bool
}

// Minimizer is the narrow seam to the external general-purpose optimizer:
// given an objective, a starting point, and a method name it returns a
// candidate minimum. A non-nil error means the request itself was bad (for
// example an unknown method) and is not retried; a failed search is reported
// through Converged=false instead.
type Minimizer interface {
	Minimize(objective func([]float64) float64, initial []float64, method string) (MinimizeResult, error)
}
