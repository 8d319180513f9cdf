package proto

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"github.com/pi-kari/animal-share-back/internal/config"
)

var Module = fx.Provide(NewGRPCServer)

// FeedService is the service name health checks report on.
const FeedService = "animalshare.v1.Feed"

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB, logger *zap.SugaredLogger) *HealthServer {
	instance := New(db, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listen := net.JoinHostPort(cfg.Host, cfg.GRPCPort)
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", listen)
			}
			logger.Infow("Starting GRPC server.", "addr", listen)

			go func() {
				if err := instance.Serve(lis); err != nil {
					logger.Errorw("GRPC server stopped.", "error", err)
				}
			}()

			return instance.Refresh(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			instance.Stop()
			return nil
		},
	})

	return instance
}

func New(db *gorm.DB, logger *zap.SugaredLogger) *HealthServer {
	instance := HealthServer{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		db:     db,
		logger: logger,
	}
	instance.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(instance.grpc, instance.health)

	return &instance
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Refresh pings the store and flips the reported status accordingly.
func (s *HealthServer) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return errors.Wrap(err, "ping database")
	}

	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return nil
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(FeedService, status)
}
