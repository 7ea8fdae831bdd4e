package stage

// Health reports whether a pipeline stage can accept work: the transcriber
// checks its model file and binaries, the analyzer probes the local inference
// server, and so on. Collected by the daemon for `vigil queue health`.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks the named stage ready to process runs.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks the named stage unusable, with detail explaining what an
// operator needs to fix.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
