// Package metric provides Prometheus-based metrics collection and an HTTP
// server for bridge monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, frame processing, NATS health) and
// component-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health check (Server type)
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("bot-adapter", 2)
//	coreMetrics.RecordFrameReceived("bot-adapter", "text")
//
// Components register their own metrics under a service prefix; duplicate
// registrations are rejected with a classified error so a misconfigured
// component fails fast instead of silently double-counting.
package metric
