// Package logx configures notifymanager's structured logging.
//
// The service uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional forward sink that relays warnings to notification devices
//     (min-level + rate limiting)
package logx
