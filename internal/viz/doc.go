// Package viz renders batch results and optimizer progress in the terminal.
//
//   - [ProgressModel]: Bubble Tea view of a running optimization
//   - [RenderReport]: lipgloss table of a finished batch
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	q, ctrl+c - cancel the optimization
//	t         - cycle color themes
package viz
