package reservations_service_api

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "railbooking.ReservationsService"

type ReservationsServiceServer interface {
	CreateReservation(context.Context, *CreateReservationRequest) (*Reservation, error)
	GetReservation(context.Context, *GetReservationRequest) (*Reservation, error)
	ListReservations(context.Context, *ListReservationsRequest) (*ListReservationsResponse, error)
	CancelReservation(context.Context, *CancelReservationRequest) (*Cancellation, error)
	PayReservation(context.Context, *PayReservationRequest) (*PayReservationResponse, error)
	ListTrainRuns(context.Context, *ListTrainRunsRequest) (*ListTrainRunsResponse, error)
}

func RegisterReservationsServiceServer(s grpc.ServiceRegistrar, srv ReservationsServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds the method handler for one RPC with request type Req.
func unary[Req any, Resp any](method string, call func(ReservationsServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ReservationsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ReservationsServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReservationsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateReservation", ReservationsServiceServer.CreateReservation),
		unary("GetReservation", ReservationsServiceServer.GetReservation),
		unary("ListReservations", ReservationsServiceServer.ListReservations),
		unary("CancelReservation", ReservationsServiceServer.CancelReservation),
		unary("PayReservation", ReservationsServiceServer.PayReservation),
		unary("ListTrainRuns", ReservationsServiceServer.ListTrainRuns),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "railbooking/reservations.proto",
}

// Client calls the service over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReservation(ctx context.Context, in *CreateReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[Reservation](ctx, c.cc, "CreateReservation", in, opts)
}

func (c *Client) GetReservation(ctx context.Context, in *GetReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[Reservation](ctx, c.cc, "GetReservation", in, opts)
}

func (c *Client) ListReservations(ctx context.Context, in *ListReservationsRequest, opts ...grpc.CallOption) (*ListReservationsResponse, error) {
	return invoke[ListReservationsResponse](ctx, c.cc, "ListReservations", in, opts)
}

func (c *Client) CancelReservation(ctx context.Context, in *CancelReservationRequest, opts ...grpc.CallOption) (*Cancellation, error) {
	return invoke[Cancellation](ctx, c.cc, "CancelReservation", in, opts)
}

func (c *Client) PayReservation(ctx context.Context, in *PayReservationRequest, opts ...grpc.CallOption) (*PayReservationResponse, error) {
	return invoke[PayReservationResponse](ctx, c.cc, "PayReservation", in, opts)
}

func (c *Client) ListTrainRuns(ctx context.Context, in *ListTrainRunsRequest, opts ...grpc.CallOption) (*ListTrainRunsResponse, error) {
	return invoke[ListTrainRunsResponse](ctx, c.cc, "ListTrainRuns", in, opts)
}
