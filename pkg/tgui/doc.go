// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers (component:action:payload)
//   - Rune-safe text truncation for captions and button labels
package tgui
