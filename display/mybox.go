package cubeview

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
)

// GetTTY opens and initializes the terminal screen
func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)

	// New screen
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("could not get new screen: %w", err)
	}

	// Initialize screen
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize screen: %w", err)
	}
	s.SetStyle(defStyle)
	s.EnableMouse()
	s.Clear()

	return s, nil
}

// WriteBar shows a long bar for the amount entered
// x1 = starting X axis (from left), x2 = ending X axis (from left)
// y1 = starting Y axis (from top), y2 = ending Y axis (from top)
func WriteBar(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style) {
	for row := y1; row < y2; row++ {
		for col := x1; col < x2; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}

// BarLength scales value against top into at most width columns.
// Any positive value gets at least one column.
func BarLength(value, top float64, width int) int {
	if value <= 0 || top <= 0 {
		return 0
	}
	n := int(math.Round(value / top * float64(width)))
	if n < 1 {
		return 1
	}
	if n > width {
		return width
	}
	return n
}

// barStyle shades bars from sea green (low) to aquamarine (the maximum)
func barStyle(value, top float64) tcell.Style {
	ratio := 0.0
	if top > 0 {
		ratio = value / top
	}

	var color tcell.Color
	switch {
	case ratio > 0.875:
		color = tcell.ColorAquaMarine
	case ratio > 0.75:
		color = tcell.ColorLightGreen
	case ratio > 0.625:
		color = tcell.ColorTurquoise
	case ratio > 0.5:
		color = tcell.ColorMediumTurquoise
	case ratio > 0.375:
		color = tcell.ColorDarkTurquoise
	case ratio > 0.25:
		color = tcell.ColorLightSeaGreen
	case ratio > 0.125:
		color = tcell.ColorMediumSeaGreen
	default:
		color = tcell.ColorSeaGreen
	}
	return tcell.StyleDefault.Background(color)
}
