// Package logx provides a small structured logging layer over zerolog.
//
// Components receive a Logger value; loggers created from a Service stay
// live across runtime config changes (Apply), so log level and sinks can be
// adjusted without re-wiring components.
package logx
