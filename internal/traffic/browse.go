package traffic

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NetGauntlet/internal/results"
)

// Probabilities shaping one browse step. Changing them changes the flow
// statistics the detector is trained against, so treat them as part of the
// dataset definition.
const (
	probPost            = 0.08
	probHead            = 0.14
	probIfModifiedSince = 0.12
	probCSS             = 0.6
	probVideo           = 0.18
	probSecondChunk     = 0.35
)

// videoUseRange selects partial-content streaming for the sample video. When
// false the video is fetched in a single full GET.
const videoUseRange = true

// BrowseRealistic walks the sitemap the way a human visitor would: a handful
// of pages, images and usually the stylesheet for each, occasional video
// chunks, log-normal think times in between. Every request is paced by the
// session's token bucket. Transport errors are recorded in the action list
// and never abort the walk.
func (s *Session) BrowseRealistic(ctx context.Context) ScenarioOutcome {
	outcome := ScenarioOutcome{
		Name:  "scenario_browse_realistic",
		Start: results.NowISO(),
		Label: "normal",
	}

	steps := 2 + rand.Intn(4)
	referer := ""
	for i := 0; i < steps && ctx.Err() == nil; i++ {
		route := s.chooseRoute()
		pageURL := s.routeToURL(route)

		headers := map[string]string{"User-Agent": s.pickUserAgent()}
		if referer != "" {
			headers["Referer"] = referer
		}
		if rand.Float64() < probIfModifiedSince {
			back := time.Duration(1+rand.Intn(60)) * 24 * time.Hour
			headers["If-Modified-Since"] = time.Now().UTC().Add(-back).Format(http.TimeFormat)
		}

		method := http.MethodGet
		var body io.Reader
		switch p := rand.Float64(); {
		case p < probPost:
			method = http.MethodPost
			form := url.Values{
				"name":    {fmt.Sprintf("visitor-%d", s.Index)},
				"message": {"obrigado pela visita"},
			}
			body = strings.NewReader(form.Encode())
			headers["Content-Type"] = "application/x-www-form-urlencoded"
		case p < probPost+probHead:
			method = http.MethodHead
		}

		if err := s.rc.WaitForToken(ctx); err != nil {
			break
		}
		outcome.Actions = append(outcome.Actions, s.fetch(ctx, method, pageURL, headers, body))

		// Subresources only follow a full page view.
		if method == http.MethodGet {
			s.loadAssets(ctx, &outcome, route, pageURL)
		}

		s.rememberRoute(route)
		referer = pageURL
		s.think(ctx, s.thinkMedian, s.thinkSigma)
	}

	outcome.End = results.NowISO()
	return outcome
}

// loadAssets fetches what a browser would request after rendering a page:
// one to four images, the stylesheet most of the time, and a video stream
// when the page calls for one.
func (s *Session) loadAssets(ctx context.Context, outcome *ScenarioOutcome, route, pageURL string) {
	imgCount := 1 + rand.Intn(4)
	for i := 0; i < imgCount; i++ {
		imgRoute := fmt.Sprintf("/assets/images/img%d.jpg", 1+rand.Intn(8))
		if err := s.rc.WaitForToken(ctx); err != nil {
			return
		}
		outcome.Actions = append(outcome.Actions, s.fetch(ctx, http.MethodGet, s.routeToURL(imgRoute), s.assetHeaders(pageURL), nil))
		s.think(ctx, 0.12, 0.5)
	}

	if rand.Float64() < probCSS {
		if err := s.rc.WaitForToken(ctx); err != nil {
			return
		}
		outcome.Actions = append(outcome.Actions, s.fetch(ctx, http.MethodGet, s.routeToURL("/assets/css/styles.css"), s.assetHeaders(pageURL), nil))
		s.think(ctx, 0.05, 0.3)
	}

	if strings.Contains(route, "video") || rand.Float64() < probVideo {
		s.streamVideo(ctx, outcome, pageURL)
		s.think(ctx, 0.4, 0.7)
	}
}

// streamVideo requests the sample video, either as one or two Range chunks
// or as a single full download.
func (s *Session) streamVideo(ctx context.Context, outcome *ScenarioOutcome, pageURL string) {
	videoURL := s.routeToURL("/assets/video/sample.mp4")

	if !videoUseRange {
		if err := s.rc.WaitForToken(ctx); err != nil {
			return
		}
		outcome.Actions = append(outcome.Actions, s.fetch(ctx, http.MethodGet, videoURL, s.assetHeaders(pageURL), nil))
		return
	}

	end := 50000 + rand.Intn(250001)
	headers := s.assetHeaders(pageURL)
	headers["Range"] = fmt.Sprintf("bytes=0-%d", end)
	if err := s.rc.WaitForToken(ctx); err != nil {
		return
	}
	outcome.Actions = append(outcome.Actions, s.fetch(ctx, http.MethodGet, videoURL, headers, nil))

	if rand.Float64() < probSecondChunk {
		s.think(ctx, 0.18, 0.4)
		start2 := end + 1
		end2 := start2 + 80000 + rand.Intn(320001)
		headers = s.assetHeaders(pageURL)
		headers["Range"] = fmt.Sprintf("bytes=%d-%d", start2, end2)
		if err := s.rc.WaitForToken(ctx); err != nil {
			return
		}
		outcome.Actions = append(outcome.Actions, s.fetch(ctx, http.MethodGet, videoURL, headers, nil))
	}
}

func (s *Session) assetHeaders(pageURL string) map[string]string {
	return map[string]string{"User-Agent": s.pickUserAgent(), "Referer": pageURL}
}
