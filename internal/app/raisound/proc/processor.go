package proc

import (
	"context"

	log "github.com/go-pkgz/lgr"
	"raisound/internal/app/raisound/podcast"
)

// Processor fetches show page, extracts episodes and downloads them
type Processor struct {
	Pages      *Fetcher
	Extractor  Strategy
	Downloader *Downloader
}

// Process show page. Page fetch and parse errors are returned before anything is downloaded,
// a page without episodes gives an empty report.
func (p *Processor) Process(ctx context.Context, pageURL, folder string) (*podcast.Report, error) {
	page, err := p.Pages.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	episodes, err := p.Extractor.Extract(page)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		log.Printf("[INFO] no episodes on %s, nothing to download", pageURL)
		return &podcast.Report{Show: pageURL}, nil
	}

	report := p.Downloader.DownloadAll(ctx, episodes, folder)
	report.Show = pageURL
	return report, nil
}
