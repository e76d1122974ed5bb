package proc

import (
	"context"
	"fmt"

	log "github.com/go-pkgz/lgr"
	"raisound/internal/app/raisound/podcast"
)

// Downloader writes episode audio into destination folder, one episode at a time
type Downloader struct {
	Fetcher  *Fetcher
	Files    *Files
	Resolver Resolver // optional
	Tagger   *Tagger  // optional
}

// DownloadAll episodes to folder. Failures are recorded per episode and never stop the loop.
func (d *Downloader) DownloadAll(ctx context.Context, episodes []podcast.Episode, folder string) *podcast.Report {
	report := &podcast.Report{}
	claimed := map[string]bool{}
	for _, episode := range episodes {
		res := d.download(ctx, episode, folder, claimed)
		switch res.Status {
		case podcast.Succeeded:
			log.Printf("[INFO] downloaded %q to %s from %s", res.Episode.Title, res.Path, res.Origin)
		case podcast.Skipped:
			log.Printf("[INFO] %s already exists, skipped", res.Path)
		case podcast.Failed:
			log.Printf("[WARN] can't download episode %d %q, %v", episode.Ordinal, res.Episode.Title, res.Err)
		}
		report.Add(res)
	}
	return report
}

// download checks destination file, then cache, then network.
// claimed holds destination paths taken by earlier episodes of the run.
func (d *Downloader) download(ctx context.Context, episode podcast.Episode, folder string, claimed map[string]bool) podcast.Result {
	res := podcast.Result{Episode: episode, Status: podcast.Failed}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	if d.Resolver != nil {
		resolved, err := d.Resolver.Resolve(ctx, episode)
		if err != nil {
			res.Err = fmt.Errorf("resolve: %w", err)
			return res
		}
		res.Episode = resolved
	}

	target := d.Files.Target(folder, res.Episode)
	if claimed[target.Path] {
		log.Printf("[DEBUG] %s is taken by another episode, ordinal added", target.Path)
		target = d.Files.DistinctTarget(folder, res.Episode)
	}
	if claimed[target.Path] {
		res.Err = fmt.Errorf("destination %s is taken by another episode", target.Path)
		return res
	}
	claimed[target.Path] = true
	res.Path = target.Path

	exists, err := d.Files.Exists(target.Path)
	if err != nil {
		res.Err = fmt.Errorf("check destination: %w", err)
		return res
	}
	if exists {
		res.Status = podcast.Skipped
		return res
	}

	data, origin, err := d.Fetcher.Fetch(ctx, res.Episode.AudioURL)
	if err != nil {
		res.Err = err
		return res
	}
	res.Origin = origin

	if err = d.Files.Write(target.Path, data); err != nil {
		res.Err = err
		return res
	}
	res.Size = int64(len(data))
	res.Status = podcast.Succeeded

	if d.Tagger != nil {
		if err = d.Tagger.Tag(target.Path, res.Episode); err != nil {
			log.Printf("[WARN] can't tag %s, %v", target.Path, err)
		}
		if res.Duration, err = d.Tagger.Duration(target.Path); err != nil {
			log.Printf("[DEBUG] can't measure %s, %v", target.Path, err)
		}
	}
	return res
}
