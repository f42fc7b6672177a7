/*
Package monitoring provides metrics collection for the asset service.

# Overview

This package implements Prometheus-based metrics for the loader engine, the
content registry, the prewarm scheduler and the HTTP admin surface.

# Features

- HTTP request metrics (latency, throughput, size)
- Host load metrics (mode, outcome, per-container latency)
- Cache metrics (hits, in-flight joins, pending and cached gauges)
- Registry metrics (open attempts, open and unavailable containers)
- Prewarm metrics (drains, items by result, queue depth)

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, monitoring.ModeSync, "ui")
	obj, err := container.Load(ctx, record)
	timer.Stop(err)

All recording methods are safe on a nil *Metrics.
*/
package monitoring
