package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const BookingServiceName = "salonbook.v1.BookingService"

type BookingServiceServer interface {
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*AppointmentResponse, error)
	UpdateAppointment(context.Context, *UpdateAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*AppointmentResponse, error)
	RequestReschedule(context.Context, *RequestRescheduleRequest) (*AppointmentResponse, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*AppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	ListUserAppointments(context.Context, *ListUserAppointmentsRequest) (*ListAppointmentsResponse, error)
	CheckModifiable(context.Context, *CheckModifiableRequest) (*CheckModifiableResponse, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

// unary adapts one typed server method to the descriptor's handler signature,
// running the server interceptor chain the same way generated code does.
// Bodies that fail to decode are reported as InvalidArgument without the
// codec's error text.
func unary[Req, Resp any](method string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + BookingServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, status.Error(codes.InvalidArgument, "request body is invalid")
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailableSlots", Handler: unary("GetAvailableSlots", BookingServiceServer.GetAvailableSlots)},
		{MethodName: "CreateAppointment", Handler: unary("CreateAppointment", BookingServiceServer.CreateAppointment)},
		{MethodName: "UpdateAppointment", Handler: unary("UpdateAppointment", BookingServiceServer.UpdateAppointment)},
		{MethodName: "CancelAppointment", Handler: unary("CancelAppointment", BookingServiceServer.CancelAppointment)},
		{MethodName: "RequestReschedule", Handler: unary("RequestReschedule", BookingServiceServer.RequestReschedule)},
		{MethodName: "GetAppointment", Handler: unary("GetAppointment", BookingServiceServer.GetAppointment)},
		{MethodName: "ListAppointments", Handler: unary("ListAppointments", BookingServiceServer.ListAppointments)},
		{MethodName: "ListUserAppointments", Handler: unary("ListUserAppointments", BookingServiceServer.ListUserAppointments)},
		{MethodName: "CheckModifiable", Handler: unary("CheckModifiable", BookingServiceServer.CheckModifiable)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salonbook/v1/booking.proto",
}

// BookingServiceClient calls the booking service with the JSON codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+BookingServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetAvailableSlots(ctx context.Context, in *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*GetAvailableSlotsResponse, error) {
	return invoke[GetAvailableSlotsResponse](ctx, c.cc, "GetAvailableSlots", in, opts)
}

func (c *BookingServiceClient) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CreateAppointment", in, opts)
}

func (c *BookingServiceClient) UpdateAppointment(ctx context.Context, in *UpdateAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "UpdateAppointment", in, opts)
}

func (c *BookingServiceClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CancelAppointment", in, opts)
}

func (c *BookingServiceClient) RequestReschedule(ctx context.Context, in *RequestRescheduleRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "RequestReschedule", in, opts)
}

func (c *BookingServiceClient) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "GetAppointment", in, opts)
}

func (c *BookingServiceClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, "ListAppointments", in, opts)
}

func (c *BookingServiceClient) ListUserAppointments(ctx context.Context, in *ListUserAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, "ListUserAppointments", in, opts)
}

func (c *BookingServiceClient) CheckModifiable(ctx context.Context, in *CheckModifiableRequest, opts ...grpc.CallOption) (*CheckModifiableResponse, error) {
	return invoke[CheckModifiableResponse](ctx, c.cc, "CheckModifiable", in, opts)
}
