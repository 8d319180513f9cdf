package logger

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pi-kari/animal-share-back/internal/config"
)

var Module = fx.Provide(NewLogger)

// NewLogger builds the process logger. Development gets the console encoder,
// everything else the JSON production config.
func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.IsDevelopment() {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}

	s := l.Sugar()
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			// stdout/stderr sync returns EINVAL on some platforms
			_ = s.Sync()
			return nil
		},
	})
	return s, nil
}
