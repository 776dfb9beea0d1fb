// Package logx configures octogrowl's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller), uncoloured when
//     stdout is not a terminal
//   - File output JSON-structured
//   - Level/output changes live across config hot-reload (Service.Apply)
package logx
