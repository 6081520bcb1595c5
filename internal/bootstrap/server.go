package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/railbooking/config"
	reservationsapi "github.com/Domenick1991/railbooking/internal/api/reservations_service_api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	log        *zap.Logger
}

// NewServers wires the HTTP handler and the gRPC service onto their listeners.
func NewServers(cfg *config.Config, handler http.Handler, grpcService reservationsapi.ReservationsServiceServer, log *zap.Logger) *Servers {
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		reservationsapi.LoggingInterceptor(log),
		reservationsapi.AuthInterceptor(cfg.Auth.JWTSecret),
	))
	reservationsapi.RegisterReservationsServiceServer(grpcSrv, grpcService)

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: &http.Server{Addr: cfg.HTTP.Address, Handler: handler},
		log:        log,
	}
}

// Run serves HTTP and gRPC and blocks until ctx is canceled or a server fails.
// On cancellation both servers drain within shutdownTimeout.
func (s *Servers) Run(ctx context.Context, grpcAddr string, shutdownTimeout time.Duration) error {
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", grpcAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("grpc server listening", zap.String("address", grpcAddr))
		return s.grpcServer.Serve(lis)
	})

	g.Go(func() error {
		s.log.Info("http server listening", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()

		err := s.httpServer.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			s.grpcServer.Stop()
		}
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
