package deezer

import (
	"fmt"
	"time"

	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/download"
	logpkg "github.com/prawnloader/prawnloader/loader/logger"
	platformplugins "github.com/prawnloader/prawnloader/loader/platform/plugins"
)

func init() {
	if err := platformplugins.Register("deezer", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(cfg *config.Config, logger *logpkg.Logger) (*platformplugins.Contribution, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logger == nil {
		logger = logpkg.Discard()
	}
	pluginLogger := logger.With("plugin", "deezer")

	downloader := download.NewService(download.Options{
		Timeout:    time.Duration(cfg.GetInt("DownloadTimeout")) * time.Second,
		CheckMD5:   cfg.GetBool("CheckMD5"),
		MaxRetries: cfg.GetInt("DownloadMaxRetries"),
		Logger:     pluginLogger,
	})

	client := New(Options{
		APIURL:     cfg.GetPluginString("deezer", "api_url"),
		MediaURL:   cfg.GetPluginString("deezer", "media_url"),
		RatePerSec: cfg.GetPluginFloat("deezer", "rate_per_sec"),
		Burst:      cfg.GetPluginInt("deezer", "burst"),
		Timeout:    time.Duration(cfg.GetPluginInt("deezer", "timeout")) * time.Second,
	}, downloader, pluginLogger)

	return &platformplugins.Contribution{
		Client:  client,
		Grammar: NewURLMatcher(),
	}, nil
}
