// Package app assembles the fx graph for the server process.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/pi-kari/animal-share-back/internal/config"
	"github.com/pi-kari/animal-share-back/internal/db"
	"github.com/pi-kari/animal-share-back/internal/logger"
	"github.com/pi-kari/animal-share-back/internal/oauth"
	"github.com/pi-kari/animal-share-back/internal/proto"
	"github.com/pi-kari/animal-share-back/internal/service"
	"github.com/pi-kari/animal-share-back/internal/transport"
)

// Options is the full process graph, with fx's own events logged through zap.
func Options() fx.Option {
	return fx.Options(
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar()}
		}),
		Modules(),
	)
}

func Modules() fx.Option {
	return fx.Options(
		fx.Provide(config.NewConfig),
		logger.Module,
		db.Module,
		service.Module,
		oauth.Module,
		transport.Module,
		proto.Module,
		fx.Invoke(
			SeedTaxonomy,
			func(*transport.HTTPServer) {},
			func(*proto.HealthServer) {},
		),
	)
}

// SeedTaxonomy applies the built-in tags before the servers start accepting
// traffic.
func SeedTaxonomy(lc fx.Lifecycle, cfg *config.Config, taxonomy *service.Taxonomy) {
	if !cfg.SeedTaxonomy {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return taxonomy.Seed(ctx)
		},
	})
}
