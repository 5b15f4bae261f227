package metrics

var _Reporters []Reporter

// Reporter defines the interface for metric reporting implementations.
// Different reporters can be used to send metrics to various backends such
// as Prometheus or a push gateway.
type Reporter interface {
	Report(r Record)
}

// SetMetricsReporters sets the global list of metric reporters. All metrics
// are forwarded to these reporters when updated. Must be called during
// startup, before components begin recording.
func SetMetricsReporters(reports []Reporter) {
	_Reporters = reports
}

func report(r Record) {
	for _, reporter := range _Reporters {
		reporter.Report(r)
	}
}
