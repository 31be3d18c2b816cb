// Package logx configures streamrec's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller) on terminals
//   - Non-terminal and file output JSON-structured
//   - Level and sinks swappable at runtime via Service.Apply
package logx
