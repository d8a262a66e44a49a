package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 640
	Height = 320

	// ScaleMax is the AQI at the top of the plot.
	ScaleMax = 300

	marginLeft   = 40
	marginRight  = 16
	marginTop    = 24
	marginBottom = 28

	minBarPct = 15
	maxBarPct = 100
)

var (
	background = color.RGBA{255, 255, 255, 255}
	gridColor  = color.RGBA{229, 231, 235, 255}
	axisText   = color.RGBA{107, 114, 128, 255}
	titleText  = color.RGBA{17, 24, 39, 255}
)

// Bar is one day in the trend chart.
type Bar struct {
	Label string
	AQI   int
	// Color is a #rrggbb fill.
	Color string
}

// BarPercent is the bar height as a percentage of the plot height: AQI scaled
// against ScaleMax, clamped to [15, 100] so small values stay visible.
func BarPercent(aqi int) int {
	pct := aqi * 100 / ScaleMax
	if pct < minBarPct {
		return minBarPct
	}
	if pct > maxBarPct {
		return maxBarPct
	}
	return pct
}

// ShortLabel is the first three characters of a day label.
func ShortLabel(label string) string {
	if utf8.RuneCountInString(label) <= 3 {
		return label
	}
	return string([]rune(label)[:3])
}

// Render draws an AQI trend bar chart and encodes it as PNG.
func Render(title string, bars []Bar) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	plotTop := marginTop
	plotBottom := Height - marginBottom
	plotH := plotBottom - plotTop
	plotLeft := marginLeft
	plotRight := Width - marginRight

	for _, v := range []int{0, 100, 200, 300} {
		y := plotBottom - v*plotH/ScaleMax
		fillRect(img, image.Rect(plotLeft, y, plotRight, y+1), gridColor)
		label := strconv.Itoa(v)
		drawText(img, label, plotLeft-6-textWidth(label), y+4, axisText)
	}

	if title != "" {
		drawText(img, title, plotLeft, 16, titleText)
	}

	if len(bars) > 0 {
		slot := (plotRight - plotLeft) / len(bars)
		barW := slot * 3 / 5
		for i, b := range bars {
			fill, err := ParseHex(b.Color)
			if err != nil {
				return nil, fmt.Errorf("bar %d: %w", i, err)
			}
			h := BarPercent(b.AQI) * plotH / 100
			x0 := plotLeft + i*slot + (slot-barW)/2
			fillRect(img, image.Rect(x0, plotBottom-h, x0+barW, plotBottom), fill)

			value := strconv.Itoa(b.AQI)
			drawText(img, value, x0+(barW-textWidth(value))/2, plotBottom-h-4, titleText)

			day := ShortLabel(b.Label)
			drawText(img, day, x0+(barW-textWidth(day))/2, plotBottom+18, axisText)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseHex parses a #rrggbb colour.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Round()
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
