package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math"
	"time"

	"LiveChart/internal/model"

	"github.com/fogleman/gg"
)

type rgba struct{ r, g, b, a float64 }

var palette = map[string]rgba{
	"blue":              {0.2, 0.4, 1, 1},
	"red":               {1, 0.2, 0.2, 1},
	"orange":            {1, 0.6, 0.1, 1},
	"lightgray":         {0.83, 0.83, 0.83, 0.8},
	"rgba(255,0,0,0.1)": {1, 0, 0, 0.1},
}

var (
	background = rgba{0.07, 0.07, 0.09, 1}
	gridColor  = rgba{0.25, 0.25, 0.28, 1}
	textColor  = rgba{0.9, 0.9, 0.9, 1}
	upColor    = rgba{0.15, 0.75, 0.45, 1}
	downColor  = rgba{0.9, 0.25, 0.25, 1}
)

const (
	marginLeft   = 70.0
	marginRight  = 20.0
	marginTop    = 40.0
	marginBottom = 30.0
	panelGap     = 10.0
)

// PNG draws spec as a static dark-themed image and writes it to w.
func PNG(w io.Writer, spec *model.ChartSpec, width, height int) error {
	if spec == nil {
		return errors.New("no chart to render")
	}
	if width < 200 || height < 150 {
		return fmt.Errorf("image too small: %dx%d", width, height)
	}

	dc := gg.NewContext(width, height)
	setColor(dc, background)
	dc.Clear()

	setColor(dc, textColor)
	dc.DrawStringAnchored(spec.Title, float64(width)/2, marginTop/2, 0.5, 0.5)

	plotW := float64(width) - marginLeft - marginRight
	plotH := float64(height) - marginTop - marginBottom - panelGap
	priceShare := spec.Price.Share
	if priceShare <= 0 || priceShare >= 1 {
		priceShare = 0.7
	}
	price := panel{x: marginLeft, y: marginTop, w: plotW, h: plotH * priceShare}
	volume := panel{x: marginLeft, y: price.y + price.h + panelGap, w: plotW, h: plotH - price.h}

	price.frame(dc)
	volume.frame(dc)

	if spec.Empty || len(spec.Price.Candles) == 0 {
		setColor(dc, textColor)
		dc.DrawStringAnchored("no data", price.x+price.w/2, price.y+price.h/2, 0.5, 0.5)
		return encode(w, dc)
	}

	axis := newTimeAxis(spec.Price.Candles, price)
	drawPrice(dc, spec, price, axis)
	drawVolume(dc, spec, volume, axis)

	setColor(dc, textColor)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", spec.Price.YRange.Max), price.x-5, price.y, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", spec.Price.YRange.Min), price.x-5, price.y+price.h, 1, 0.5)
	dc.DrawStringAnchored(compact(spec.Volume.YRange.Max), volume.x-5, volume.y, 1, 0.5)
	first, last := spec.Price.Candles[0].Time, spec.Price.Candles[len(spec.Price.Candles)-1].Time
	dc.DrawStringAnchored(first.Format("Jan 2 15:04"), volume.x, volume.y+volume.h+12, 0, 0.5)
	dc.DrawStringAnchored(last.Format("Jan 2 15:04"), volume.x+volume.w, volume.y+volume.h+12, 1, 0.5)

	return encode(w, dc)
}

type panel struct{ x, y, w, h float64 }

func (p panel) frame(dc *gg.Context) {
	setColor(dc, gridColor)
	dc.SetLineWidth(1)
	dc.DrawRectangle(p.x, p.y, p.w, p.h)
	dc.Stroke()
}

// yFor maps v in r onto the panel, top = r.Max.
func (p panel) yFor(v float64, r model.AxisRange) float64 {
	span := r.Max - r.Min
	if span <= 0 {
		return p.y + p.h/2
	}
	return p.y + p.h*(1-(v-r.Min)/span)
}

// timeAxis places bars by index so gaps (overnight, weekends) are not drawn.
type timeAxis struct {
	index map[time.Time]int
	step  float64
	x0    float64
}

func newTimeAxis(candles []model.Candle, p panel) timeAxis {
	idx := make(map[time.Time]int, len(candles))
	for i, c := range candles {
		idx[c.Time.UTC()] = i
	}
	return timeAxis{index: idx, step: p.w / float64(len(candles)), x0: p.x}
}

func (a timeAxis) x(t time.Time) (float64, bool) {
	i, ok := a.index[t.UTC()]
	if !ok {
		return 0, false
	}
	return a.x0 + a.step*(float64(i)+0.5), true
}

func drawPrice(dc *gg.Context, spec *model.ChartSpec, p panel, axis timeAxis) {
	r := spec.Price.YRange

	// band fill
	if pts := spec.Price.Band.Points; len(pts) > 1 {
		setColor(dc, colorOf(spec.Price.Band.Color))
		started := false
		for _, bp := range pts {
			if x, ok := axis.x(bp.Time); ok {
				if !started {
					dc.MoveTo(x, p.yFor(bp.Upper, r))
					started = true
				} else {
					dc.LineTo(x, p.yFor(bp.Upper, r))
				}
			}
		}
		for i := len(pts) - 1; i >= 0; i-- {
			if x, ok := axis.x(pts[i].Time); ok {
				dc.LineTo(x, p.yFor(pts[i].Lower, r))
			}
		}
		dc.ClosePath()
		dc.Fill()
	}

	// candles
	bodyW := math.Max(1, axis.step*0.6)
	for _, c := range spec.Price.Candles {
		x, _ := axis.x(c.Time)
		col := upColor
		if c.Close < c.Open {
			col = downColor
		}
		setColor(dc, col)
		dc.SetLineWidth(1)
		dc.DrawLine(x, p.yFor(c.High, r), x, p.yFor(c.Low, r))
		dc.Stroke()
		top, bottom := p.yFor(math.Max(c.Open, c.Close), r), p.yFor(math.Min(c.Open, c.Close), r)
		dc.DrawRectangle(x-bodyW/2, top, bodyW, math.Max(1, bottom-top))
		dc.Fill()
	}

	// overlays
	for _, l := range spec.Price.Lines {
		if len(l.Points) < 2 {
			continue
		}
		setColor(dc, colorOf(l.Color))
		dc.SetLineWidth(1.5)
		for i, pt := range l.Points {
			x, ok := axis.x(pt.Time)
			if !ok {
				continue
			}
			if i == 0 {
				dc.MoveTo(x, p.yFor(pt.Value, r))
			} else {
				dc.LineTo(x, p.yFor(pt.Value, r))
			}
		}
		dc.Stroke()
	}
}

func drawVolume(dc *gg.Context, spec *model.ChartSpec, p panel, axis timeAxis) {
	r := spec.Volume.YRange
	w := math.Max(1, axis.step*0.8)
	setColor(dc, colorOf(spec.Volume.Color))
	for _, b := range spec.Volume.Bars {
		x, ok := axis.x(b.Time)
		if !ok {
			continue
		}
		top := p.yFor(b.Volume, r)
		dc.DrawRectangle(x-w/2, top, w, p.y+p.h-top)
		dc.Fill()
	}
}

func colorOf(name string) rgba {
	if c, ok := palette[name]; ok {
		return c
	}
	return textColor
}

func setColor(dc *gg.Context, c rgba) {
	dc.SetRGBA(c.r, c.g, c.b, c.a)
}

func compact(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func encode(w io.Writer, dc *gg.Context) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
