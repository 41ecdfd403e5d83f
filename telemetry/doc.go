/*
Package telemetry wires the game to OpenTelemetry.

A Provider implements core.Telemetry: StartSpan opens spans on an SDK
tracer provider exporting over OTLP (gRPC or HTTP) or to stdout, and
RecordMetric feeds cached counters on an SDK meter provider pushing over
OTLP/HTTP, or on the global meter when no metrics endpoint is configured.
When telemetry is disabled
the service runs with core.NoOpTelemetry instead and nothing here is
constructed.

Usage:

	provider, err := telemetry.New(ctx, cfg.Telemetry, telemetry.WithLogger(logger))
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	manager := game.NewManager(store, game.WithTelemetry(provider))

HTTP handlers are traced with TracingMiddleware, which reads the global
propagator that New installs.
*/
package telemetry
