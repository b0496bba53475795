// Package logx is the structured logger used across jobsys.
//
// It wraps zerolog with:
//   - a console sink with short timestamps and file:line callers
//   - an optional JSON file sink
//   - Service.Apply, which swaps level and sinks at runtime for config hot reload
package logx
