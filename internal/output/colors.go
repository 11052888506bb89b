package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for the different parts of a report.
type ColorScheme struct {
	Border  *color.Color
	Title   *color.Color
	Label   *color.Color
	Value   *color.Color
	Success *color.Color
	Warn    *color.Color
	Error   *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Border:  color.New(color.FgCyan),
		Title:   color.New(color.Bold),
		Label:   color.New(color.Bold),
		Value:   color.New(color.FgCyan),
		Success: color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Error:   color.New(color.FgRed),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// forceColor enables every color regardless of the package-wide
// color.NoColor detection, which only looks at stdout.
func (s *ColorScheme) forceColor() *ColorScheme {
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Border, s.Title, s.Label, s.Value, s.Success, s.Warn, s.Error}
}
