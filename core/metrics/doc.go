// Package metrics defines the events emitted by the control loop and the
// sink interfaces that record them. A sink implements the mandatory
// MetricsSink interface plus any of the optional recorder interfaces;
// fan-out across several sinks checks capabilities per sink.
package metrics
