package proc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	log "github.com/go-pkgz/lgr"
	"raisound/internal/app/raisound/podcast"
)

// Resolver turns an extracted episode into one pointing at audio
type Resolver interface {
	Resolve(ctx context.Context, episode podcast.Episode) (podcast.Episode, error)
}

// MetadataResolver follows raiplay episode metadata documents (*.json) to the audio url.
// Episodes which already point at audio are returned as is.
type MetadataResolver struct {
	Fetcher *Fetcher
}

// Resolve episode, metadata is fetched through the cache
func (r *MetadataResolver) Resolve(ctx context.Context, episode podcast.Episode) (podcast.Episode, error) {
	if !isMetadataURL(episode.AudioURL) {
		return episode, nil
	}

	data, origin, err := r.Fetcher.Fetch(ctx, episode.AudioURL)
	if err != nil {
		return episode, fmt.Errorf("metadata: %w", err)
	}
	log.Printf("[DEBUG] metadata %s from %s", episode.AudioURL, origin)

	meta := struct {
		Title        string `json:"title"`
		EpisodeTitle string `json:"episode_title"`
		Audio        struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"audio"`
	}{}
	if err = json.Unmarshal(data, &meta); err != nil {
		return episode, fmt.Errorf("decode metadata %s: %w", episode.AudioURL, err)
	}
	if strings.TrimSpace(meta.Audio.URL) == "" {
		return episode, errors.New("metadata has no audio url")
	}

	audioURL, err := resolveURL(episode.AudioURL, strings.TrimSpace(meta.Audio.URL))
	if err != nil {
		return episode, fmt.Errorf("metadata audio url: %w", err)
	}

	resolved := episode
	resolved.AudioURL = audioURL
	if title := firstNonEmpty(strings.TrimSpace(meta.Audio.Title), strings.TrimSpace(meta.EpisodeTitle),
		strings.TrimSpace(meta.Title)); title != "" {
		resolved.Title = title
	}
	return resolved, nil
}

func isMetadataURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".json")
}
