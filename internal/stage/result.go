package stage

// Result is the outcome of a single stage call.
type Result struct {
	Artifact string
	// Summary carries auxiliary output such as the translator's summary.
	Summary string
	Err     error
}

// Ok reports a successful stage with its produced artifact.
func Ok(artifact string) Result {
	return Result{Artifact: artifact}
}

// Failed reports a failed stage.
func Failed(err error) Result {
	return Result{Err: err}
}

// OK reports whether the stage succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}
