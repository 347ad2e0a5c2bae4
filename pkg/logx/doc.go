// Package logx configures timekeep's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, with a rate cap so a misbehaving timer
//     callback cannot flood the disk
//   - Runtime reconfiguration via Service.Apply
package logx
