package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/vitals.report/internal/httputil"
	"github.com/banshee-data/vitals.report/internal/vitals"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxChartPoints bounds each waveform series.
const maxChartPoints = 2000

// spectrumPlot draws the magnitude spectrum of the pulse waveform up to
// maxHz, with the heart-rate band and the current estimate marked.
func spectrumPlot(pulse vitals.PulseSignal, band vitals.Band, estimateBPM, maxHz float64) (*plot.Plot, error) {
	sp := vitals.MagnitudeSpectrum(vitals.Detrend(pulse.Samples), pulse.SampleRate)

	pts := make(plotter.XYs, 0, len(sp.Freqs))
	peak := 0.0
	for i, f := range sp.Freqs {
		if f > maxHz {
			break
		}
		pts = append(pts, plotter.XY{X: f, Y: sp.Magnitudes[i]})
		if sp.Magnitudes[i] > peak {
			peak = sp.Magnitudes[i]
		}
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("spectrum has %d bins below %.1f Hz", len(pts), maxHz)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Pulse spectrum (%d samples @ %.1f Hz)", len(pulse.Samples), pulse.SampleRate)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Magnitude"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	p.Legend.Add("magnitude", line)

	bandColor := color.RGBA{R: 150, G: 150, B: 150, A: 255}
	for _, f := range []float64{band.LowHz, band.HighHz} {
		edge, err := plotter.NewLine(plotter.XYs{{X: f, Y: 0}, {X: f, Y: peak}})
		if err != nil {
			return nil, err
		}
		edge.Color = bandColor
		edge.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(edge)
	}

	if estimateBPM > 0 {
		hz := estimateBPM / 60
		mark, err := plotter.NewLine(plotter.XYs{{X: hz, Y: 0}, {X: hz, Y: peak}})
		if err != nil {
			return nil, err
		}
		mark.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		mark.Width = vg.Points(1.5)
		p.Add(mark)
		p.Legend.Add(fmt.Sprintf("%.1f bpm", estimateBPM), mark)
	}
	p.X.Min = 0
	p.X.Max = maxHz
	return p, nil
}

// handleSpectrum renders the pulse spectrum as a PNG.
// Query params:
//   - max_hz (optional; default 5) upper frequency limit
func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	maxHz := 5.0
	if v := r.URL.Query().Get("max_hz"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 30 {
			maxHz = f
		}
	}

	snap := s.src.Snapshot()
	if snap.Pulse == nil {
		httputil.Unavailable(w, "not enough samples for a pulse signal")
		return
	}
	p, err := spectrumPlot(*snap.Pulse, snap.Config.HeartBand, snap.HeartRate.BPM, maxHz)
	if err != nil {
		httputil.Unavailable(w, err.Error())
		return
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

// stride picks every nth point so that at most limit remain.
func stride(n, limit int) int {
	if n <= limit {
		return 1
	}
	return (n + limit - 1) / limit
}

// handleWaveform renders the CHROM pulse and the chin trace as ECharts
// line charts.
func (s *Server) handleWaveform(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("vitals %s", snap.ID))
	page.SetAssetsHost(echartsAssetsPrefix)

	if snap.Pulse != nil && len(snap.Colors) == len(snap.Pulse.Samples) {
		page.AddCharts(pulseChart(snap.Colors, snap.Pulse.Samples))
	}
	if len(snap.Landmarks) > 0 {
		page.AddCharts(chinChart(snap.Landmarks))
	}
	if len(page.Charts) == 0 {
		httputil.Unavailable(w, "no samples yet")
		return
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func pulseChart(colors []vitals.ColorSample, pulse []float64) *charts.Line {
	step := stride(len(pulse), maxChartPoints)
	t0 := colors[0].TimestampMs
	x := make([]string, 0, len(pulse)/step+1)
	y := make([]opts.LineData, 0, len(pulse)/step+1)
	for i := 0; i < len(pulse); i += step {
		x = append(x, fmt.Sprintf("%.2f", float64(colors[i].TimestampMs-t0)/1000))
		y = append(y, opts.LineData{Value: pulse[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "CHROM pulse", Subtitle: fmt.Sprintf("%d samples", len(pulse))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x).AddSeries("pulse", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func chinChart(landmarks []vitals.LandmarkSample) *charts.Line {
	step := stride(len(landmarks), maxChartPoints)
	t0 := landmarks[0].TimestampMs
	x := make([]string, 0, len(landmarks)/step+1)
	y := make([]opts.LineData, 0, len(landmarks)/step+1)
	for i := 0; i < len(landmarks); i += step {
		x = append(x, fmt.Sprintf("%.2f", float64(landmarks[i].TimestampMs-t0)/1000))
		y = append(y, opts.LineData{Value: landmarks[i].Y})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Chin position", Subtitle: fmt.Sprintf("%d samples", len(landmarks))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x).AddSeries("chin_y", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
