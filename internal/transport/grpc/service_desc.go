package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name. Every method takes and
// returns a google.protobuf.Struct.
const ServiceName = "calendra.v1.AvailabilityService"

const (
	MethodIsAvailableOnDate    = "IsAvailableOnDate"
	MethodListSlots            = "ListSlots"
	MethodBookSlot             = "BookSlot"
	MethodAddHoliday           = "AddHoliday"
	MethodAddMaintenancePeriod = "AddMaintenancePeriod"
	MethodListSlotsInRange     = "ListSlotsInRange"
	MethodSetStatus            = "SetStatus"
	MethodCancelAppointment    = "CancelAppointment"
	MethodCreateCalendar       = "CreateCalendar"
	MethodListHolidayDates     = "ListHolidayDates"
)

type AvailabilityServiceServer interface {
	IsAvailableOnDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BookSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddHoliday(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddMaintenancePeriod(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListSlotsInRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateCalendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListHolidayDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodIsAvailableOnDate,
			Handler: unaryHandler(MethodIsAvailableOnDate, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.IsAvailableOnDate(ctx, req)
			}),
		},
		{
			MethodName: MethodListSlots,
			Handler: unaryHandler(MethodListSlots, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListSlots(ctx, req)
			}),
		},
		{
			MethodName: MethodBookSlot,
			Handler: unaryHandler(MethodBookSlot, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.BookSlot(ctx, req)
			}),
		},
		{
			MethodName: MethodAddHoliday,
			Handler: unaryHandler(MethodAddHoliday, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.AddHoliday(ctx, req)
			}),
		},
		{
			MethodName: MethodAddMaintenancePeriod,
			Handler: unaryHandler(MethodAddMaintenancePeriod, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.AddMaintenancePeriod(ctx, req)
			}),
		},
		{
			MethodName: MethodListSlotsInRange,
			Handler: unaryHandler(MethodListSlotsInRange, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListSlotsInRange(ctx, req)
			}),
		},
		{
			MethodName: MethodSetStatus,
			Handler: unaryHandler(MethodSetStatus, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.SetStatus(ctx, req)
			}),
		},
		{
			MethodName: MethodCancelAppointment,
			Handler: unaryHandler(MethodCancelAppointment, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.CancelAppointment(ctx, req)
			}),
		},
		{
			MethodName: MethodCreateCalendar,
			Handler: unaryHandler(MethodCreateCalendar, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.CreateCalendar(ctx, req)
			}),
		},
		{
			MethodName: MethodListHolidayDates,
			Handler: unaryHandler(MethodListHolidayDates, func(srv AvailabilityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListHolidayDates(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendra/v1/availability.proto",
}

func RegisterAvailabilityServiceServer(s grpc.ServiceRegistrar, srv AvailabilityServiceServer) {
	s.RegisterService(&AvailabilityServiceDesc, srv)
}

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AvailabilityServiceClient calls AvailabilityService methods by name.
type AvailabilityServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityServiceClient(cc grpc.ClientConnInterface) *AvailabilityServiceClient {
	return &AvailabilityServiceClient{cc: cc}
}

func (c *AvailabilityServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
