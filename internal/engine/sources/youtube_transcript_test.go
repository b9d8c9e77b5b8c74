package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="4.2" dur="2.0">light energy is &amp;#39;captured&amp;#39;</text>
<text start="0.5" dur="3.1">welcome to biology</text>
<text start="7" dur="1">  </text>
</transcript>`

const transcriptPanelJSON = `{"actions": [{"updateEngagementPanelAction": {"content": {"transcriptRenderer": {"content": {
	"transcriptSearchPanelRenderer": {"body": {"transcriptSegmentListRenderer": {"initialSegments": [
		{"transcriptSegmentRenderer": {"startMs": "0", "endMs": "1500", "snippet": {"runs": [{"text": "cells divide"}]}}},
		{"transcriptSegmentRenderer": {"startMs": "1500", "endMs": "4000", "snippet": {"runs": [{"text": "by "}, {"text": "mitosis"}]}}}
	]}}}}}}}}]}`

type fakeYouTube struct {
	srv        *httptest.Server
	watchHits  atomic.Int32
	nextHits   atomic.Int32
	playerHits atomic.Int32
	watchPage  func(base string) string
	panel      bool
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	t.Helper()
	fy := &fakeYouTube{}
	fy.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			fy.watchHits.Add(1)
			if fy.watchPage == nil {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(fy.watchPage(fy.srv.URL)))
		case "/api/timedtext":
			_, _ = w.Write([]byte(timedTextXML))
		case ytNextPath:
			fy.nextHits.Add(1)
			if !fy.panel {
				_, _ = w.Write([]byte(`{"engagementPanels": []}`))
				return
			}
			_, _ = w.Write([]byte(`{"x": {"getTranscriptEndpoint":{"params":"CgtBQUFB%3D%3D"}}}`))
		case ytGetTranscriptPath:
			_, _ = w.Write([]byte(transcriptPanelJSON))
		case ytPlayerPath:
			fy.playerHits.Add(1)
			_, _ = w.Write([]byte(`{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "Sign in"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fy.srv.Close)
	return fy
}

func watchPageWithTracks(base string) string {
	return fmt.Sprintf(`<html><script>var ytInitialPlayerResponse = {"captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
		{"baseUrl": "%[1]s/api/timedtext?lang=de&exp=xpe", "languageCode": "de"},
		{"baseUrl": "%[1]s/api/timedtext?lang=en&kind=asr", "languageCode": "en", "kind": "asr"},
		{"baseUrl": "%[1]s/api/timedtext?lang=en-GB", "languageCode": "en-GB"}
	]}}, "note": "brace } in string"};</script></html>`, base)
}

func TestTranscriptViaWatchPage(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.watchPage = watchPageWithTracks

	f := NewTranscriptFetcher(WithWebBase(fy.srv.URL), WithoutCache(), WithLanguages("en"))
	frags, err := f.Transcript(context.Background(), "abcdefghijk")
	require.NoError(t, err)

	require.Len(t, frags, 2)
	assert.Equal(t, "light energy is 'captured'", frags[0].Text)
	assert.InDelta(t, 4.2, frags[0].Start, 1e-9)
	assert.Equal(t, "welcome to biology", ranking.JoinFragments(frags)[:18])
	assert.InDelta(t, 6.2, TranscriptDuration(frags), 1e-9)
	assert.Zero(t, fy.nextHits.Load())
}

func TestTranscriptFallsBackToEngagementPanel(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.panel = true

	f := NewTranscriptFetcher(WithWebBase(fy.srv.URL), WithoutCache())
	frags, err := f.Transcript(context.Background(), "abcdefghijk")
	require.NoError(t, err)

	require.Len(t, frags, 2)
	assert.Equal(t, "by mitosis", frags[1].Text)
	assert.InDelta(t, 1.5, frags[1].Start, 1e-9)
	assert.InDelta(t, 2.5, frags[1].Duration, 1e-9)
	assert.Equal(t, int32(1), fy.watchHits.Load())
	assert.Zero(t, fy.playerHits.Load())
}

func TestTranscriptUnavailable(t *testing.T) {
	fy := newFakeYouTube(t)

	f := NewTranscriptFetcher(WithWebBase(fy.srv.URL), WithoutCache())
	_, err := f.Transcript(context.Background(), "abcdefghijk")
	require.ErrorIs(t, err, ranking.ErrTranscriptUnavailable)
	assert.Contains(t, err.Error(), "Sign in")
	assert.Equal(t, int32(1), fy.playerHits.Load())
}

func TestTranscriptCached(t *testing.T) {
	engine.InitCache("", time.Minute, 100, time.Minute)
	fy := newFakeYouTube(t)
	fy.watchPage = watchPageWithTracks

	f := NewTranscriptFetcher(WithWebBase(fy.srv.URL))
	for range 3 {
		frags, err := f.Transcript(context.Background(), "cachedvid01")
		require.NoError(t, err)
		require.Len(t, frags, 2)
	}
	assert.Equal(t, int32(1), fy.watchHits.Load())
}

func TestTranscriptCanceled(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.watchPage = watchPageWithTracks

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewTranscriptFetcher(WithWebBase(fy.srv.URL), WithoutCache())
	_, err := f.Transcript(ctx, "abcdefghijk")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPickBestTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1&exp=xpe", LanguageCode: "en"},
		{BaseURL: "u2", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u3", LanguageCode: "fr"},
		{BaseURL: "u4", LanguageCode: "fr", Kind: "asr"},
	}

	got, ok := pickBestTrack(tracks, []string{"fr"})
	require.True(t, ok)
	assert.Equal(t, "u3", got.BaseURL)

	got, ok = pickBestTrack(tracks, []string{"en"})
	require.True(t, ok)
	assert.Equal(t, "u2", got.BaseURL, "PoToken tracks are skipped")

	got, ok = pickBestTrack(tracks, []string{"ja"})
	require.True(t, ok)
	assert.Equal(t, "u2", got.BaseURL, "falls back to English")

	_, ok = pickBestTrack(tracks[:1], []string{"en"})
	assert.False(t, ok)
}

func TestExtractJSON(t *testing.T) {
	in := []byte(`{"a": "x}\"y", "b": {"c": 1}}; var other = {}`)
	assert.Equal(t, `{"a": "x}\"y", "b": {"c": 1}}`, string(extractJSON(in)))
	assert.Nil(t, extractJSON([]byte(`[1]`)))
	assert.Nil(t, extractJSON([]byte(`{"open": 1`)))
}

func TestExtractTranscriptToken(t *testing.T) {
	tok, err := extractTranscriptToken([]byte(`{"getTranscriptEndpoint":{"params":"CgtB%3D%3D"}}`))
	require.NoError(t, err)
	assert.Equal(t, "CgtB==", tok)

	_, err = extractTranscriptToken([]byte(`{}`))
	assert.Error(t, err)
}
