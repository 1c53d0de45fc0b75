/*
Package observability turns engine lifecycle hooks into Prometheus metrics
and structured log lines.

	metrics := observability.NewMetrics("flowra")
	metrics.MustRegister(prometheus.DefaultRegisterer)
	engine, _ := flowra.New(flowra.WithLifecycleHooks(metrics.Hooks()))
*/
package observability
