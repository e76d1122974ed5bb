package proc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
	"raisound/internal/app/raisound/podcast"
)

// ErrNoBlock is returned by a strategy when the page has no structured block it understands
var ErrNoBlock = errors.New("no episode block found")

// ParseError is returned when episodes can't be extracted from the show page
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Strategy extracts episodes from one kind of page layout
type Strategy interface {
	Name() string
	// Extract returns episodes in page order, ErrNoBlock if the layout isn't recognised
	Extract(page *podcast.ShowPage) ([]podcast.Episode, error)
}

// Chain tries strategies in order, the first one finding its block wins
type Chain []Strategy

// DefaultChain knows raiplay sound pages, json-ld podcast series and rss/atom feeds
func DefaultChain() Chain {
	return Chain{&LabelsStrategy{}, &JSONLDStrategy{}, &FeedStrategy{}}
}

// Name of chain
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, s := range c {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Extract episodes with the first matching strategy. Empty result with nil error is a valid page without episodes.
func (c Chain) Extract(page *podcast.ShowPage) ([]podcast.Episode, error) {
	for _, s := range c {
		episodes, err := s.Extract(page)
		if errors.Is(err, ErrNoBlock) {
			log.Printf("[DEBUG] %s: no %s block", page.URL, s.Name())
			continue
		}
		if err != nil {
			return nil, &ParseError{URL: page.URL, Err: fmt.Errorf("%s: %w", s.Name(), err)}
		}
		log.Printf("[INFO] found %d episodes on %s with %s", len(episodes), page.URL, s.Name())
		return episodes, nil
	}
	return nil, &ParseError{URL: page.URL, Err: ErrNoBlock}
}

// LabelsStrategy reads raiplay sound <rps-play-with-labels options='{"url": ...}'> elements
type LabelsStrategy struct{}

// Name of strategy
func (s *LabelsStrategy) Name() string { return "labels" }

// Extract episodes from options attribute json
func (s *LabelsStrategy) Extract(page *podcast.ShowPage) ([]podcast.Episode, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	labels := doc.Find("rps-play-with-labels")
	if labels.Length() == 0 {
		return nil, ErrNoBlock
	}
	base := baseURL(doc, page.URL)

	result := episodeList{}
	labels.Each(func(i int, sel *goquery.Selection) {
		raw, ok := sel.Attr("options")
		if !ok {
			log.Printf("[WARN] label %d on %s has no options, skipped", i, page.URL)
			return
		}
		opts := struct {
			URL          string `json:"url"`
			Title        string `json:"title"`
			EpisodeTitle string `json:"episode_title"`
		}{}
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			log.Printf("[WARN] label %d on %s has invalid options, skipped, %v", i, page.URL, err)
			return
		}
		title := firstNonEmpty(strings.TrimSpace(opts.Title), strings.TrimSpace(opts.EpisodeTitle),
			strings.TrimSpace(sel.AttrOr("title", "")))
		if err := result.add(base, title, opts.URL); err != nil {
			log.Printf("[WARN] label %d on %s skipped, %v", i, page.URL, err)
		}
	})
	return result, nil
}

// JSONLDStrategy reads <script type="application/ld+json"> describing a podcast series or an item list
type JSONLDStrategy struct{}

// Name of strategy
func (s *JSONLDStrategy) Name() string { return "json-ld" }

// Extract episodes from the first series-like json-ld node
func (s *JSONLDStrategy) Extract(page *podcast.ShowPage) ([]podcast.Episode, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base := baseURL(doc, page.URL)

	var series map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(sel.Text()), &v); err != nil {
			log.Printf("[WARN] json-ld script %d on %s is invalid, %v", i, page.URL, err)
			return true
		}
		series = findSeries(v)
		return series == nil
	})
	if series == nil {
		return nil, ErrNoBlock
	}

	result := episodeList{}
	for i, item := range seriesItems(series) {
		node, ok := item.(map[string]any)
		if !ok {
			log.Printf("[WARN] json-ld entry %d on %s is not an object, skipped", i, page.URL)
			continue
		}
		if inner, ok := node["item"].(map[string]any); ok {
			node = inner
		}
		title := firstNonEmpty(stringField(node, "name"), stringField(node, "headline"))
		if err := result.add(base, title, mediaURL(node)); err != nil {
			log.Printf("[WARN] json-ld entry %d on %s skipped, %v", i, page.URL, err)
		}
	}
	return result, nil
}

var seriesTypes = map[string]bool{"PodcastSeries": true, "RadioSeries": true, "CreativeWorkSeries": true, "ItemList": true}

func findSeries(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, n := range node {
			if s := findSeries(n); s != nil {
				return s
			}
		}
	case map[string]any:
		if isSeries(node) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findSeries(graph)
		}
	}
	return nil
}

// isSeries checks @type given either as a string or as a list of strings
func isSeries(node map[string]any) bool {
	switch types := node["@type"].(type) {
	case string:
		return seriesTypes[strings.TrimSpace(types)]
	case []any:
		for _, t := range types {
			if s, ok := t.(string); ok && seriesTypes[strings.TrimSpace(s)] {
				return true
			}
		}
	}
	return false
}

func seriesItems(series map[string]any) []any {
	for _, field := range []string{"episode", "hasPart", "itemListElement"} {
		switch items := series[field].(type) {
		case []any:
			return items
		case map[string]any:
			return []any{items}
		}
	}
	return nil
}

func mediaURL(node map[string]any) string {
	for _, field := range []string{"associatedMedia", "audio"} {
		switch media := node[field].(type) {
		case map[string]any:
			if u := firstNonEmpty(stringField(media, "contentUrl"), stringField(media, "url")); u != "" {
				return u
			}
		case string:
			return media
		}
	}
	return firstNonEmpty(stringField(node, "contentUrl"), stringField(node, "url"))
}

// FeedStrategy reads rss/atom/json feeds, taking the first enclosure of every item
type FeedStrategy struct{}

// Name of strategy
func (s *FeedStrategy) Name() string { return "feed" }

// Extract episodes from feed items with enclosures
func (s *FeedStrategy) Extract(page *podcast.ShowPage) ([]podcast.Episode, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, ErrNoBlock
	}

	result := episodeList{}
	for i, item := range feed.Items {
		var link string
		for _, enc := range item.Enclosures {
			if enc.URL != "" {
				link = enc.URL
				break
			}
		}
		if err := result.add(page.URL, strings.TrimSpace(item.Title), link); err != nil {
			log.Printf("[WARN] feed item %d on %s skipped, %v", i, page.URL, err)
		}
	}
	return result, nil
}

type episodeList []podcast.Episode

// add resolves link against base and appends episode with next ordinal
func (l *episodeList) add(base, title, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return errors.New("missing url")
	}
	abs, err := resolveURL(base, link)
	if err != nil {
		return err
	}
	ordinal := len(*l) + 1
	if title == "" {
		title = titleFromURL(abs, ordinal)
	}
	*l = append(*l, podcast.Episode{Ordinal: ordinal, Title: title, AudioURL: abs})
	return nil
}

func baseURL(doc *goquery.Document, pageURL string) string {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return pageURL
	}
	abs, err := resolveURL(pageURL, href)
	if err != nil {
		return pageURL
	}
	return abs
}

// resolveURL makes link absolute against base, only http(s) results are accepted
func resolveURL(base, link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", link, err)
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base url %q: %w", base, err)
		}
		ref = b.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return "", fmt.Errorf("not an absolute http url %q", ref.String())
	}
	return ref.String(), nil
}

// titleFromURL derives placeholder title from last path segment
func titleFromURL(rawURL string, ordinal int) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		if base != "" && base != "." && base != "/" {
			if unescaped, err := url.PathUnescape(base); err == nil {
				base = unescaped
			}
			return base
		}
	}
	return fmt.Sprintf("episode %d", ordinal)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
