package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"fbs/internal/domain"
	"fbs/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName  = "fbs.availability.v1.AvailabilityService"
	methodGetDayReservations = "/" + availabilityServiceName + "/GetDayReservations"
	methodGetGlimpse         = "/" + availabilityServiceName + "/GetGlimpse"
	methodListFacilities     = "/" + availabilityServiceName + "/ListFacilities"
)

// AvailabilityServer is the read-only gRPC surface. Requests and responses
// are google.protobuf.Struct values shaped like the HTTP JSON bodies.
type AvailabilityServer interface {
	GetDayReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetGlimpse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListFacilities(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryMethod(name string, call func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + availabilityServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AvailabilityServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetDayReservations", AvailabilityServer.GetDayReservations),
		unaryMethod("GetGlimpse", AvailabilityServer.GetGlimpse),
		unaryMethod("ListFacilities", AvailabilityServer.ListFacilities),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fbs/availability/v1/availability.proto",
}

func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

type AvailabilityService struct {
	availability domain.AvailabilityService
	catalog      domain.FacilityCatalog
	maxIDs       int
}

func NewAvailabilityService(availability domain.AvailabilityService, catalog domain.FacilityCatalog, maxIDs int) *AvailabilityService {
	return &AvailabilityService{
		availability: availability,
		catalog:      catalog,
		maxIDs:       maxIDs,
	}
}

func (s *AvailabilityService) GetDayReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	facilityID := stringField(req, "facilityId")
	if facilityID == "" {
		return nil, status.Error(codes.InvalidArgument, "facilityId is required")
	}
	date := stringField(req, "date")
	if date == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}

	reservations, err := s.availability.GetDayReservations(ctx, facilityID, date)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(models.DayReservations{FacilityID: facilityID, Date: date, Reservations: reservations})
}

func (s *AvailabilityService) GetGlimpse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ids := stringList(req, "ids")
	if len(ids) == 0 {
		return nil, status.Error(codes.InvalidArgument, "ids is required")
	}
	if s.maxIDs > 0 && len(ids) > s.maxIDs {
		return nil, status.Errorf(codes.InvalidArgument, "at most %d ids per request", s.maxIDs)
	}

	res, err := s.availability.GetNextSlotsGlimpse(ctx, models.GlimpseRequest{
		FacilityIDs:    ids,
		Date:           stringField(req, "date"),
		PreferredStart: stringField(req, "start"),
		BusinessStart:  stringField(req, "businessStart"),
		BusinessEnd:    stringField(req, "businessEnd"),
		Duration:       intField(req, "duration"),
		Step:           intField(req, "step"),
		Limit:          intField(req, "limit"),
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

func (s *AvailabilityService) ListFacilities(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	minCapacity := intField(req, "minCapacity")
	if minCapacity < 0 {
		return nil, status.Error(codes.InvalidArgument, "minCapacity must not be negative")
	}
	page := s.catalog.List(models.FacilityFilter{
		Query:       stringField(req, "q"),
		MinCapacity: minCapacity,
		Equipment:   stringList(req, "equipment"),
		Page:        intField(req, "page"),
		PageSize:    intField(req, "pageSize"),
	})
	return toStruct(page)
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func intField(req *structpb.Struct, name string) int {
	return int(req.GetFields()[name].GetNumberValue())
}

// stringList accepts either a list of strings or a comma-separated string.
func stringList(req *structpb.Struct, name string) []string {
	v := req.GetFields()[name]
	if list := v.GetListValue(); list != nil {
		out := make([]string, 0, len(list.GetValues()))
		for _, item := range list.GetValues() {
			if s := strings.TrimSpace(item.GetStringValue()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return splitCSV(v.GetStringValue())
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func grpcError(err error) error {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindInvalidRange:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	return status.Error(codes.Internal, "internal error")
}
