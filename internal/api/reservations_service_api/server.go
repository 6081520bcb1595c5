package reservations_service_api

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/railbooking/internal/auth"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/service/payment"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/Domenick1991/railbooking/internal/service/trains"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const dateLayout = "2006-01-02"

// Server exposes reservations, payments and train runs over gRPC.
type Server struct {
	reservations reservation.UseCase
	payments     payment.UseCase
	trains       trains.UseCase
	log          *zap.Logger
}

func NewServer(reservations reservation.UseCase, payments payment.UseCase, trains trains.UseCase, log *zap.Logger) *Server {
	return &Server{reservations: reservations, payments: payments, trains: trains, log: log}
}

func (s *Server) CreateReservation(ctx context.Context, req *CreateReservationRequest) (*Reservation, error) {
	journey, err := time.Parse(dateLayout, req.JourneyDate)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "journey_date must be YYYY-MM-DD")
	}
	passengers := make([]domain.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = domain.Passenger{Name: p.Name, Age: int(p.Age), Gender: p.Gender}
	}

	created, err := s.reservations.Create(ctx, reservation.CreateInput{
		UserID:      currentUser(ctx),
		TrainRunID:  req.TrainRunID,
		JourneyDate: journey,
		Passengers:  passengers,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toPBReservation(created), nil
}

func (s *Server) GetReservation(ctx context.Context, req *GetReservationRequest) (*Reservation, error) {
	res, err := s.reservations.GetByPNR(ctx, req.PNR)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if res.UserID != currentUser(ctx) {
		return nil, s.toStatus(domain.ErrReservationNotFound)
	}
	return toPBReservation(res), nil
}

func (s *Server) ListReservations(ctx context.Context, _ *ListReservationsRequest) (*ListReservationsResponse, error) {
	list, err := s.reservations.ListByUser(ctx, currentUser(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := &ListReservationsResponse{Reservations: make([]*Reservation, len(list))}
	for i := range list {
		out.Reservations[i] = toPBReservation(&list[i])
	}
	return out, nil
}

func (s *Server) CancelReservation(ctx context.Context, req *CancelReservationRequest) (*Cancellation, error) {
	c, err := s.reservations.Cancel(ctx, req.PNR, req.Reason, reservation.ByUser(currentUser(ctx)))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &Cancellation{
		ID:                c.ID,
		PNR:               c.PNR,
		Reason:            c.Reason,
		RefundAmountPaise: int64(c.RefundAmount),
		RefundStatus:      c.RefundStatus,
		CancelledBy:       string(c.CancelledBy),
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) PayReservation(ctx context.Context, req *PayReservationRequest) (*PayReservationResponse, error) {
	result, err := s.payments.Pay(ctx, payment.PayRequest{
		PNR:        req.PNR,
		UserID:     currentUser(ctx),
		Method:     domain.PaymentMethod(req.Method),
		CardNumber: req.CardNumber,
		UPIID:      req.UPIID,
		BankCode:   req.BankCode,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &PayReservationResponse{
		PaymentStatus: string(result.Payment.Status),
		TransactionID: result.Payment.TransactionID,
		FailureReason: result.Payment.FailureReason,
		Reservation:   toPBReservation(&result.Reservation),
	}, nil
}

func (s *Server) ListTrainRuns(ctx context.Context, _ *ListTrainRunsRequest) (*ListTrainRunsResponse, error) {
	runs, err := s.trains.List(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := &ListTrainRunsResponse{TrainRuns: make([]*TrainRun, len(runs))}
	for i, r := range runs {
		out.TrainRuns[i] = &TrainRun{
			ID:             r.ID,
			Number:         r.Number,
			Name:           r.Name,
			Source:         r.Source,
			Destination:    r.Destination,
			Class:          r.Class,
			AvailableSeats: int32(r.AvailableSeats),
			FarePaise:      int64(r.Fare),
		}
	}
	return out, nil
}

func (s *Server) toStatus(err error) error {
	switch {
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrNoSeatsAvailable), errors.Is(err, domain.ErrInsufficientSeats):
		return status.Error(codes.ResourceExhausted, err.Error())
	case domain.IsConflict(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.log.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func currentUser(ctx context.Context) string {
	id, _ := auth.UserFrom(ctx)
	return id
}

// AuthInterceptor requires an "authorization: Bearer <jwt>" metadata entry
// and puts the token subject into the request context.
func AuthInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if v := md.Get("authorization"); len(v) > 0 {
			header = v[0]
		}
		sub, err := auth.BearerSubject(secret, header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithUser(ctx, sub), req)
	}
}

// LoggingInterceptor logs each call with its status code.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			log.Error("grpc call failed", fields...)
		} else {
			log.Info("grpc call", fields...)
		}
		return resp, err
	}
}

func toPBReservation(r *domain.Reservation) *Reservation {
	if r == nil {
		return nil
	}
	passengers := make([]*Passenger, len(r.Passengers))
	for i, p := range r.Passengers {
		passengers[i] = &Passenger{Name: p.Name, Age: int32(p.Age), Gender: p.Gender}
	}
	return &Reservation{
		PNR:            r.PNR,
		UserID:         r.UserID,
		TrainRunID:     r.TrainRunID,
		JourneyDate:    r.JourneyDate.Format(dateLayout),
		PassengerCount: int32(r.PassengerCount),
		TotalFarePaise: int64(r.TotalFare),
		Status:         r.Status.String(),
		Passengers:     passengers,
		BookedAt:       r.BookedAt.Format(time.RFC3339),
	}
}
