// Package viz renders estimability runs in the terminal.
//
//   - [Renderer]: lipgloss panels for rankings, selection curves and fits
//   - [PlotCurve], [PlotProfiles]: asciigraph plots
//   - [Browser]: bubbletea browser over stored runs
//
// # Key Bindings
//
//	↑/↓, j/k - Move through runs
//	Enter    - Open run report
//	P        - Toggle plots
//	Esc      - Back to list
//	Q        - Quit
package viz
