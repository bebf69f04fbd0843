package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Icon dimensions for system tray.
const iconSize = 22

// Pre-generated PNG icons for the session states.
var (
	iconDisconnectedPNG []byte
	iconConnectingPNG   []byte
	iconConnectedPNG    []byte
	iconErrorPNG        []byte
)

func init() {
	iconDisconnectedPNG = generateShieldIcon(color.RGBA{128, 128, 128, 255}) // Gray
	iconConnectingPNG = generateShieldIcon(color.RGBA{255, 140, 0, 255})     // Orange
	iconConnectedPNG = generateShieldIcon(color.RGBA{76, 175, 80, 255})      // Green
	iconErrorPNG = generateShieldIcon(color.RGBA{211, 47, 47, 255})          // Red
}

// generateShieldIcon creates a simple shield icon with the specified color.
func generateShieldIcon(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))

	left := 4
	right := 17
	top := 3
	straightBottom := 13
	tipY := 20
	centerX := (left + right) / 2

	// Upper part: straight-sided rectangle.
	for y := top; y <= straightBottom; y++ {
		for x := left; x <= right; x++ {
			img.Set(x, y, c)
		}
	}

	// Lower part: sides taper towards the tip.
	for y := straightBottom + 1; y <= tipY; y++ {
		inset := (y - straightBottom) * (centerX - left) / (tipY - straightBottom)
		for x := left + inset; x <= right-inset; x++ {
			img.Set(x, y, c)
		}
	}

	// Check mark cutout in the middle.
	mark := color.RGBA{250, 250, 250, 255}
	img.Set(centerX-3, 10, mark)
	img.Set(centerX-2, 11, mark)
	img.Set(centerX-1, 12, mark)
	img.Set(centerX, 11, mark)
	img.Set(centerX+1, 10, mark)
	img.Set(centerX+2, 9, mark)
	img.Set(centerX+3, 8, mark)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
