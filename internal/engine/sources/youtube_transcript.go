package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
)

// YouTube transcript fetching, tried in order:
//   1. watch page ytInitialPlayerResponse → caption track XML (works from any IP)
//   2. /next → engagement panel → /get_transcript (works from datacenter IPs)
//   3. ANDROID Innertube /player → caption track XML

// TranscriptFetcher returns timestamped caption fragments for a video.
// It implements ranking.TranscriptSource and is safe for concurrent use.
type TranscriptFetcher struct {
	langs      []string
	webBase    string
	httpClient *http.Client
	browser    bool // route watch page fetches through engine.BrowserGet
	cache      bool
}

// TranscriptOption configures a TranscriptFetcher.
type TranscriptOption func(*TranscriptFetcher)

// WithLanguages sets the preferred caption languages, most preferred first.
func WithLanguages(langs ...string) TranscriptOption {
	return func(f *TranscriptFetcher) {
		if len(langs) > 0 {
			f.langs = langs
		}
	}
}

// WithWebBase overrides https://www.youtube.com. Watch pages are then fetched
// with the plain HTTP client.
func WithWebBase(base string) TranscriptOption {
	return func(f *TranscriptFetcher) {
		f.webBase = strings.TrimRight(base, "/")
		f.browser = false
	}
}

// WithTranscriptHTTPClient sets the HTTP client for Innertube and timedtext calls.
func WithTranscriptHTTPClient(hc *http.Client) TranscriptOption {
	return func(f *TranscriptFetcher) { f.httpClient = hc }
}

// WithoutCache disables the engine result cache for transcripts.
func WithoutCache() TranscriptOption {
	return func(f *TranscriptFetcher) { f.cache = false }
}

// NewTranscriptFetcher builds a fetcher from engine.Cfg, then applies opts.
func NewTranscriptFetcher(opts ...TranscriptOption) *TranscriptFetcher {
	f := &TranscriptFetcher{
		langs:      engine.Cfg.TranscriptLangs,
		webBase:    ytWebBase,
		httpClient: engine.Cfg.HTTPClient,
		browser:    engine.Cfg.BrowserClient != nil,
		cache:      true,
	}
	if len(f.langs) == 0 {
		f.langs = []string{"en"}
	}
	if f.httpClient == nil {
		f.httpClient = http.DefaultClient
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Transcript fetches the transcript in the configured languages.
func (f *TranscriptFetcher) Transcript(ctx context.Context, videoID string) ([]ranking.Fragment, error) {
	return f.TranscriptIn(ctx, videoID, f.langs)
}

// TranscriptIn fetches the transcript preferring langs. Successful results
// are cached; failures are not.
func (f *TranscriptFetcher) TranscriptIn(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error) {
	if len(langs) == 0 {
		langs = f.langs
	}
	key := engine.CacheKey("transcript", videoID, strings.Join(langs, ","))
	if f.cache {
		if frags, ok := engine.CacheLoadJSON[[]ranking.Fragment](ctx, key); ok && len(frags) > 0 {
			return frags, nil
		}
	}

	engine.IncrYouTubeTranscript()
	frags, err := f.fetch(ctx, videoID, langs)
	if err != nil {
		engine.IncrYouTubeTranscriptError()
		return nil, err
	}
	if f.cache {
		engine.CacheStoreJSON(ctx, key, frags)
	}
	return frags, nil
}

func (f *TranscriptFetcher) fetch(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error) {
	frags, err := f.viaPageScrape(ctx, videoID, langs)
	if err == nil {
		return frags, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Debug("youtube: page scrape failed, trying engagement panel",
		slog.String("id", videoID), slog.Any("error", err))

	frags, err = f.viaEngagementPanel(ctx, videoID, langs)
	if err == nil {
		return frags, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Debug("youtube: engagement panel failed, trying player",
		slog.String("id", videoID), slog.Any("error", err))

	frags, err = f.viaPlayer(ctx, videoID, langs)
	if err == nil {
		return frags, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: %s: %v", ranking.ErrTranscriptUnavailable, videoID, err)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

func (f *TranscriptFetcher) viaPageScrape(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error) {
	watchURL := f.webBase + "/watch?v=" + url.QueryEscape(videoID)
	hl := firstLang(langs)

	var body []byte
	var err error
	if f.browser {
		body, err = engine.BrowserGet(ctx, watchURL, map[string]string{"Accept-Language": hl + ",en;q=0.9"})
	} else {
		body, err = f.getPage(ctx, watchURL, hl)
	}
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	idx := strings.Index(string(body), ytInitialPlayerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return f.fromPlayerResponse(ctx, playerResp, langs)
}

func (f *TranscriptFetcher) getPage(ctx context.Context, pageURL, hl string) ([]byte, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", hl+",en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return f.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
}

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// /next returns the params URL-encoded; /get_transcript wants raw base64.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

func (f *TranscriptFetcher) viaEngagementPanel(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error) {
	visitorData := generateVisitorData()
	hl := firstLang(langs)

	nextData, err := f.postInnerTube(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData, hl),
	}, webHeaders(visitorData))
	if err != nil {
		return nil, err
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, err
	}

	data, err := f.postInnerTube(ctx, ytGetTranscriptPath, map[string]any{
		"params":  token,
		"context": ytWebContext(visitorData, hl),
	}, webHeaders(visitorData))
	if err != nil {
		return nil, err
	}

	var resp ytGetTranscriptResp
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	frags := parseTranscriptSegments(resp)
	if len(frags) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return frags, nil
}

// parseTranscriptSegments converts /get_transcript segments to fragments.
func parseTranscriptSegments(resp ytGetTranscriptResp) []ranking.Fragment {
	var frags []ranking.Fragment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range r.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			text := strings.Join(strings.Fields(sb.String()), " ")
			if text == "" {
				continue
			}
			start := msToSeconds(r.StartMs)
			frag := ranking.Fragment{Text: text, Start: start}
			if end := msToSeconds(r.EndMs); end > start {
				frag.Duration = end - start
			}
			frags = append(frags, frag)
		}
	}
	return frags
}

func msToSeconds(ms string) float64 {
	n, err := strconv.ParseFloat(ms, 64)
	if err != nil {
		return 0
	}
	return n / 1000
}

func (f *TranscriptFetcher) viaPlayer(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error) {
	data, err := f.postInnerTube(ctx, ytPlayerPath, innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                firstLang(langs),
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	if err != nil {
		return nil, err
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(data, &playerResp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return f.fromPlayerResponse(ctx, playerResp, langs)
}

// fromPlayerResponse picks a caption track from a player response and
// downloads it.
func (f *TranscriptFetcher) fromPlayerResponse(ctx context.Context, playerResp innertubePlayerResp, langs []string) ([]ranking.Fragment, error) {
	if playerResp.Captions == nil {
		if ps := playerResp.PlayabilityStatus; ps != nil && ps.Reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", ps.Reason)
		}
		return nil, errors.New("no captions in player response")
	}
	tracks := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return nil, errors.New("all caption tracks require PoToken")
	}
	return f.fetchTimedText(ctx, track.BaseURL)
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken; those only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if sameLang(t.LanguageCode, lang) && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if sameLang(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// sameLang matches "en" against "en", "en-US", "en-GB".
func sameLang(code, want string) bool {
	if strings.EqualFold(code, want) {
		return true
	}
	base, _, _ := strings.Cut(code, "-")
	return strings.EqualFold(base, want)
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL.
func (f *TranscriptFetcher) fetchTimedText(ctx context.Context, baseURL string) ([]ranking.Fragment, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return f.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty timedtext response")
	}
	return parseTimedText(body)
}

// parseTimedText converts timedtext XML into fragments. Caption text is
// HTML-escaped inside the XML, so each line goes through engine.CleanHTML.
func parseTimedText(body []byte) ([]ranking.Fragment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	frags := make([]ranking.Fragment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanHTML(line.Text)
		if text == "" {
			continue
		}
		frags = append(frags, ranking.Fragment{Text: text, Start: line.Start, Duration: line.Dur})
	}
	if len(frags) == 0 {
		return nil, errors.New("timedtext has no lines")
	}
	return frags, nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

func firstLang(langs []string) string {
	if len(langs) == 0 || langs[0] == "" {
		return "en"
	}
	return langs[0]
}

// TranscriptDuration returns the end offset of the last fragment in seconds.
func TranscriptDuration(frags []ranking.Fragment) float64 {
	var end float64
	for _, fr := range frags {
		if e := fr.Start + fr.Duration; e > end {
			end = e
		}
	}
	return end
}
