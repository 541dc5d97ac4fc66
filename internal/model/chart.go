package model

import "time"

// Candle is one price mark.
type Candle struct {
	Time  time.Time `json:"t"`
	Open  float64   `json:"o"`
	High  float64   `json:"h"`
	Low   float64   `json:"l"`
	Close float64   `json:"c"`
}

// LinePoint is a defined value of an overlay line.
type LinePoint struct {
	Time  time.Time `json:"t"`
	Value float64   `json:"v"`
}

// Line is an overlay drawn on the price panel. Points only cover defined positions.
type Line struct {
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Window int         `json:"window,omitempty"`
	Points []LinePoint `json:"points"`
}

// BandPoint pairs the upper and lower band at one timestamp.
type BandPoint struct {
	Time  time.Time `json:"t"`
	Upper float64   `json:"u"`
	Lower float64   `json:"l"`
}

// BandFill is the shaded region between the bands.
type BandFill struct {
	Color  string      `json:"color"`
	Points []BandPoint `json:"points"`
}

// AxisRange bounds a panel's y axis.
type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// VolumeBar is one volume mark. Rising is true when the bar closed at or above its open.
type VolumeBar struct {
	Time   time.Time `json:"t"`
	Volume float64   `json:"v"`
	Rising bool      `json:"up"`
}

// PriceLayer is the upper panel.
type PriceLayer struct {
	Share   float64   `json:"share"`
	YRange  AxisRange `json:"y_range"`
	Candles []Candle  `json:"candles"`
	Lines   []Line    `json:"lines"`
	Band    BandFill  `json:"band"`
}

// VolumeLayer is the lower panel.
type VolumeLayer struct {
	Share  float64     `json:"share"`
	YRange AxisRange   `json:"y_range"`
	Color  string      `json:"color"`
	Bars   []VolumeBar `json:"bars"`
}

// Layout carries presentation hints shared by both panels.
type Layout struct {
	Template    string `json:"template"`
	SharedXAxis bool   `json:"shared_x_axis"`
	XTitle      string `json:"x_title"`
	PriceTitle  string `json:"price_title"`
	VolumeTitle string `json:"volume_title"`
	Timezone    string `json:"timezone"`
}

// ChartSpec is a complete, display-ready chart. It is built once per refresh
// and never mutated afterwards.
type ChartSpec struct {
	Symbol      string      `json:"symbol"`
	Title       string      `json:"title"`
	Period      Period      `json:"period"`
	GeneratedAt time.Time   `json:"generated_at"`
	Empty       bool        `json:"empty"`
	Price       PriceLayer  `json:"price"`
	Volume      VolumeLayer `json:"volume"`
	Layout      Layout      `json:"layout"`
}

// PriceMarks counts every mark drawn on the price panel.
func (c *ChartSpec) PriceMarks() int {
	if c == nil {
		return 0
	}
	n := len(c.Price.Candles) + len(c.Price.Band.Points)
	for _, l := range c.Price.Lines {
		n += len(l.Points)
	}
	return n
}

// VolumeMarks counts the volume bars.
func (c *ChartSpec) VolumeMarks() int {
	if c == nil {
		return 0
	}
	return len(c.Volume.Bars)
}

// LineByName finds an overlay by name.
func (c *ChartSpec) LineByName(name string) (Line, bool) {
	for _, l := range c.Price.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return Line{}, false
}
