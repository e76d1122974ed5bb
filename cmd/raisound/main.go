package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"raisound/internal/app/raisound"
	"raisound/internal/app/raisound/proc"
	"raisound/internal/configs"
)

var opts struct {
	URL     string `short:"u" long:"url" env:"RAISOUND_URL" required:"true" description:"show page url"`
	Folder  string `short:"f" long:"folder" env:"RAISOUND_FOLDER" default:"." description:"destination folder"`
	Cache   string `short:"c" long:"cache" env:"RAISOUND_CACHE" description:"cache folder (default: system temp dir)"`
	Conf    string `long:"conf" env:"RAISOUND_CONF" default:"raisound.yml" description:"config file (yml)"`
	Refresh bool   `short:"r" long:"refresh" description:"refetch show page even if cached"`
	Upload  bool   `long:"upload" description:"upload episodes to cloud storage"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"show debug info"`
}

func checkFileExists(filepath string) bool {
	if _, err := os.Stat(filepath); errors.Is(err, os.ErrNotExist) {
		return false
	}

	return true
}

func main() {
	p := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		p.WriteHelp(os.Stderr)
		os.Exit(2)
	}
	setupLog(opts.Dbg)

	configFile := opts.Conf
	if !checkFileExists(configFile) {
		configFile = "configs/raisound.yml"
	}

	conf := configs.Default()
	if checkFileExists(configFile) {
		var err error
		if conf, err = configs.Load(configFile); err != nil {
			log.Fatalf("[ERROR] can't load config %s, %v", configFile, err)
		}
	} else {
		log.Printf("[DEBUG] config %s not found, using defaults", opts.Conf)
	}

	cacheDir := opts.Cache
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}

	store, closeStore, err := raisound.NewStore(conf, cacheDir)
	if err != nil {
		log.Fatalf("[ERROR] can't create %s cache store, %v", conf.Cache.Backend, err)
	}

	client := &http.Client{Timeout: conf.HTTP.Timeout}
	app, err := raisound.NewApplication(conf, raisound.NewProcessor(conf, store, client, opts.Refresh), cacheDir)
	if err != nil {
		_ = closeStore()
		log.Fatalf("[ERROR] can't create app, %v", err)
	}

	if opts.Upload {
		if !conf.HasCloudStorage() {
			_ = closeStore()
			log.Fatalf("[ERROR] upload requested, but cloud_storage is not configured in %s", opts.Conf)
		}
		s3client, err := raisound.NewS3Client(conf.CloudStorage.EndPointURL, conf.CloudStorage.Secrets.Key,
			conf.CloudStorage.Secrets.Secret, conf.CloudStorage.Secure)
		if err != nil {
			_ = closeStore()
			log.Fatalf("[ERROR] can't create s3client instance, %v", err)
		}
		app.SetMirror(&proc.S3Store{Client: s3client, Location: conf.CloudStorage.Region,
			Bucket: conf.CloudStorage.Bucket, Prefix: conf.CloudStorage.Prefix})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_, err = app.Run(ctx, opts.URL, opts.Folder)
	cancel()
	if cerr := closeStore(); cerr != nil {
		log.Printf("[WARN] can't close cache store, %v", cerr)
	}
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}
