package model

import "math/rand/v2"

// Color is the display color of a contact, stored as four 8-bit channels.
type Color struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
	Alpha uint8 `json:"alpha"`
}

// Palette holds the pastel colors new contacts are drawn from.
var Palette = [...]Color{
	{Red: 184, Green: 255, Blue: 204, Alpha: 255},
	{Red: 255, Green: 202, Blue: 185, Alpha: 255},
	{Red: 239, Green: 255, Blue: 191, Alpha: 255},
	{Red: 255, Green: 221, Blue: 251, Alpha: 255},
	{Red: 217, Green: 228, Blue: 255, Alpha: 255},
	{Red: 204, Green: 255, Blue: 247, Alpha: 255},
}

// RandomColor picks one of the palette colors uniformly at random.
func RandomColor() Color {
	return Palette[rand.IntN(len(Palette))]
}
