package raisound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	log "github.com/go-pkgz/lgr"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"raisound/internal/app/raisound/podcast"
	"raisound/internal/app/raisound/proc"
	"raisound/internal/configs"
)

// LockName is the lock file kept in cache root while a run is in progress
const LockName = ".raisound.lock"

// App downloads one show per run
type App struct {
	config    *configs.Conf
	processor *proc.Processor
	mirror    *proc.S3Store
	lock      *flock.Flock
	out       io.Writer
	pretty    bool
}

// NewApplication makes app working on cache root cacheDir
func NewApplication(conf *configs.Conf, p *proc.Processor, cacheDir string) (*App, error) {
	if conf == nil || p == nil {
		return nil, errors.New("app requires config and processor")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache folder %s: %w", cacheDir, err)
	}
	app := App{
		config:    conf,
		processor: p,
		lock:      flock.New(filepath.Join(cacheDir, LockName)),
		out:       os.Stdout,
		pretty:    isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
	return &app, nil
}

// SetOutput sets report writer, plain table style is used for it
func (a *App) SetOutput(w io.Writer) {
	a.out = w
	a.pretty = false
}

// SetMirror enables upload of downloaded episodes
func (a *App) SetMirror(s *proc.S3Store) {
	a.mirror = s
}

// Run downloads episodes of show page into folder and prints report.
// Error is returned only for page level failures, episode failures are in the report.
func (a *App) Run(ctx context.Context, pageURL, folder string) (*podcast.Report, error) {
	locked, err := a.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache %s is used by another run", filepath.Dir(a.lock.Path()))
	}
	defer func() {
		if err := a.lock.Unlock(); err != nil {
			log.Printf("[WARN] can't unlock %s, %v", a.lock.Path(), err)
		}
	}()

	started := time.Now()
	report, err := a.processor.Process(ctx, pageURL, folder)
	if err != nil {
		return nil, err
	}

	if a.mirror != nil {
		uploaded, err := a.mirror.Mirror(ctx, report)
		if err != nil {
			log.Printf("[ERROR] can't mirror episodes, %v", err)
		} else {
			log.Printf("[INFO] uploaded %d episodes to %s", uploaded, a.mirror.Bucket)
		}
	}

	succeeded, skipped, failed := report.Counts()
	log.Printf("[INFO] done %s in %v: %d succeeded, %d skipped, %d failed",
		pageURL, time.Since(started).Round(time.Millisecond), succeeded, skipped, failed)

	if len(report.Results) > 0 {
		if _, err := fmt.Fprintln(a.out, RenderReport(report, a.pretty)); err != nil {
			log.Printf("[WARN] can't print report, %v", err)
		}
	}
	return report, nil
}

// NewProcessor wires fetchers, extractor and downloader over the shared store
func NewProcessor(conf *configs.Conf, store proc.Store, client proc.HTTPClient, refresh bool) *proc.Processor {
	pages := &proc.Fetcher{Store: store, Client: client, UserAgent: conf.HTTP.UserAgent, Refresh: refresh}
	resources := &proc.Fetcher{Store: store, Client: client, UserAgent: conf.HTTP.UserAgent}

	downloader := &proc.Downloader{
		Fetcher:  resources,
		Files:    &proc.Files{FallbackExt: conf.Download.FallbackExt, Numbered: conf.Download.Numbered},
		Resolver: &proc.MetadataResolver{Fetcher: resources},
	}
	if conf.Download.Tags {
		downloader.Tagger = &proc.Tagger{Album: conf.Download.Album, Artist: conf.Download.Artist}
	}

	return &proc.Processor{Pages: pages, Extractor: proc.DefaultChain(), Downloader: downloader}
}

// NewStore makes cache store for configured backend, close must be called when done
func NewStore(conf *configs.Conf, cacheDir string) (store proc.Store, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch conf.Cache.Backend {
	case "", configs.BackendFiles:
		return &proc.FileStore{Root: cacheDir}, noop, nil
	case configs.BackendMemory:
		return proc.NewMemStore(), noop, nil
	case configs.BackendBolt:
		db, err := NewBoltDB(dbPath(conf, cacheDir, "raisound.bdb"))
		if err != nil {
			return nil, nil, err
		}
		return &proc.BoltDB{DB: db}, db.Close, nil
	case configs.BackendSQLite:
		s, err := proc.NewSQLite(dbPath(conf, cacheDir, "raisound.sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", conf.Cache.Backend)
}

func dbPath(conf *configs.Conf, cacheDir, name string) string {
	if conf.Cache.DB != "" {
		return conf.Cache.DB
	}
	return filepath.Join(cacheDir, name)
}

// NewBoltDB opens bolt database, creating parent folder
func NewBoltDB(dbFile string) (*bolt.DB, error) {
	if dir := filepath.Dir(dbFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db folder %s: %w", dir, err)
		}
	}
	db, err := bolt.Open(dbFile, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", dbFile, err)
	}
	return db, nil
}

// NewS3Client makes minio client for s3 compatible storage
func NewS3Client(endpoint, accessKeyID, secretAccessKey string, secure bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: secure,
	})
}
