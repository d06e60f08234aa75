package apihttp

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"

	"riskbook/internal/analytics"
	"riskbook/internal/logger"
)

var (
	headlessOnce sync.Once
	headlessErr  error
)

// ensureHeadlessAvailable probes for a usable headless browser exactly once
// per process.
func ensureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		probe, cancel := chromedp.NewContext(ctx)
		defer cancel()
		headlessErr = chromedp.Run(probe)
	})
	return headlessErr
}

// handleSnapshot renders the dashboard page headless and returns it as a PNG,
// for embedding the analytics view outside a browser.
func (r *Router) handleSnapshot(c *gin.Context) {
	if err := ensureHeadlessAvailable(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no headless browser available"})
		return
	}
	settings, _, err := r.userSettings(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading settings failed"})
		return
	}
	records, err := r.journal.List(c.Request.Context(), r.userID(c))
	if err != nil {
		logger.Errorf("[api] snapshot list failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading the journal failed"})
		return
	}
	html, err := buildDashboardHTML(analytics.BuildReport(records, settings.AccountSize))
	if err != nil {
		logger.Errorf("[api] snapshot render failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rendering the dashboard failed"})
		return
	}
	png, err := renderHTMLToPNG(c.Request.Context(), html, chartWidthPx, 2*chartHeightPx+120)
	if err != nil {
		logger.Errorf("[api] snapshot screenshot failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "screenshot failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
