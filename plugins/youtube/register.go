package youtube

import (
	"fmt"
	"time"

	"github.com/prawnloader/prawnloader/loader/config"
	logpkg "github.com/prawnloader/prawnloader/loader/logger"
	platformplugins "github.com/prawnloader/prawnloader/loader/platform/plugins"
)

func init() {
	if err := platformplugins.Register("youtube", buildContribution); err != nil {
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

	client := New(Options{
		RatePerSec: cfg.GetPluginFloat("youtube", "rate_per_sec"),
		Burst:      cfg.GetPluginInt("youtube", "burst"),
		Timeout:    time.Duration(cfg.GetPluginInt("youtube", "timeout")) * time.Second,
		RetryMax:   cfg.GetPluginInt("youtube", "retry_max"),
	}, logger.With("plugin", "youtube"))

	return &platformplugins.Contribution{
		Client:  client,
		Grammar: NewURLMatcher(),
	}, nil
}
