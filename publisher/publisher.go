// Package publisher holds the network side of posting: an X API v2 client
// and a dry-run stand-in.
package publisher

import (
	"context"
	"fmt"

	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/logger"
	"github.com/sirupsen/logrus"
)

// Publisher posts text. It returns false when the network declined the post
// and an error when the network could not be reached.
type Publisher interface {
	Publish(ctx context.Context, text string) (bool, error)
}

// Checker reports whether the publisher's upstream is reachable with the
// configured credentials.
type Checker interface {
	Check(ctx context.Context) error
}

// New builds the publisher selected by cfg.Mode.
func New(cfg config.PublisherConfig, log logrus.FieldLogger) (Publisher, error) {
	log = logger.Or(log)
	switch cfg.Mode {
	case "", config.PublisherModeDryRun:
		return NewDryRun(log), nil
	case config.PublisherModeX:
		if cfg.XBearerToken == "" {
			return nil, fmt.Errorf("publisher mode %q needs a bearer token", cfg.Mode)
		}
		return NewXClient(cfg.XAPIBase, cfg.XBearerToken,
			WithLogger(log),
			WithRequestsPerMinute(cfg.RequestsPerMinute),
			WithMaxRetries(cfg.MaxRetries),
		), nil
	}
	return nil, fmt.Errorf("unknown publisher mode %q", cfg.Mode)
}
