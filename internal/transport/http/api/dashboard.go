package apihttp

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"riskbook/internal/analytics"
	"riskbook/internal/logger"
)

const (
	colorBackground = "#060c1b"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorEquity     = "#3b82f6"
	colorHWM        = "#fbbf24"
	colorWin        = "#34d399"
	colorLoss       = "#f87171"
	colorScratch    = "#a78bfa"

	chartWidthPx  = 1200
	chartHeightPx = 420
)

// handleDashboard renders the analytics report as a self-contained echarts
// page: the equity walk with its high-water mark, and the R-multiple
// distribution.
func (r *Router) handleDashboard(c *gin.Context) {
	settings, _, err := r.userSettings(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading settings failed"})
		return
	}
	records, err := r.journal.List(c.Request.Context(), r.userID(c))
	if err != nil {
		logger.Errorf("[api] dashboard list failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading the journal failed"})
		return
	}
	report := analytics.BuildReport(records, settings.AccountSize)
	html, err := buildDashboardHTML(report)
	if err != nil {
		logger.Errorf("[api] dashboard render failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rendering the dashboard failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func buildDashboardHTML(report analytics.Report) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildEquityChart(report), buildHistogramChart(report.Histogram))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildEquityChart(report analytics.Report) *charts.Line {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("max drawdown %s (%.1f%%) | total P&L %s",
		report.Curve.MaxDrawdown, report.Performance.MaxDrawdownPercent, report.Performance.TotalProfitLoss)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Equity Curve",
			Subtitle:      subtitle,
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Name:      "trade #",
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.2)}},
		}),
	)

	points := report.Curve.Points
	xAxis := make([]string, len(points))
	equity := make([]opts.LineData, len(points))
	hwm := make([]opts.LineData, len(points))
	for i, p := range points {
		xAxis[i] = fmt.Sprintf("%d", p.TradeNumber)
		equity[i] = opts.LineData{Value: p.Equity.InexactFloat64()}
		hwm[i] = opts.LineData{Value: p.HighWaterMark.InexactFloat64()}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("High Water Mark", hwm,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorHWM, Width: 1, Type: "dashed"}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func buildHistogramChart(histogram []analytics.RBucket) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "R-Multiple Distribution",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorText, FontSize: 18},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextDim, Rotate: 20},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.15)}},
		}),
	)

	xAxis := make([]string, len(histogram))
	data := make([]opts.BarData, len(histogram))
	for i, bucket := range histogram {
		xAxis[i] = bucket.Label
		data[i] = opts.BarData{
			Value:     bucket.Count,
			ItemStyle: &opts.ItemStyle{Color: toneColor(bucket.Tone), Opacity: opts.Float(0.85)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Trades", data)
	return bar
}

func toneColor(tone analytics.BucketTone) string {
	switch tone {
	case analytics.ToneWin:
		return colorWin
	case analytics.ToneLoss:
		return colorLoss
	default:
		return colorScratch
	}
}
