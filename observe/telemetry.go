package observe

// Telemetry bundles the instruments handed to cache, upstream and tool
// components. The zero value is not usable; start from NopTelemetry.
type Telemetry struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// NopTelemetry returns a Telemetry that discards everything.
func NopTelemetry() Telemetry {
	return Telemetry{
		Logger:  NopLogger(),
		Metrics: NopMetrics(),
		Tracer:  NopTracer(),
	}
}

// TelemetryFromObserver builds a Telemetry on the observer's providers.
func TelemetryFromObserver(obs Observer) (Telemetry, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Telemetry{}, err
	}
	return Telemetry{
		Logger:  obs.Logger(),
		Metrics: metrics,
		Tracer:  NewTracer(obs.Tracer()),
	}, nil
}

// OrNop fills unset instruments with no-op implementations.
func (t Telemetry) OrNop() Telemetry {
	if t.Logger == nil {
		t.Logger = NopLogger()
	}
	if t.Metrics == nil {
		t.Metrics = NopMetrics()
	}
	if t.Tracer == nil {
		t.Tracer = NopTracer()
	}
	return t
}
