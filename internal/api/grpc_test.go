package api

import (
	"context"
	"io"
	"net"
	"testing"

	"fbs/internal/catalog"
	"fbs/internal/config"
	"fbs/internal/models"
	"fbs/internal/repository"
	"fbs/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newGRPCClient(t *testing.T, cfg config.APIConfig) (*grpc.ClientConn, *repository.MemoryBookingRepository) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	repo := repository.NewMemoryBookingRepository()
	cat := catalog.New(nil)
	avail := service.NewAvailabilityService(repo, cat, config.BookingConfig{}, &logger)

	srv, err := NewGRPCServer(cfg, NewAvailabilityService(avail, cat, 5), &logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, repo
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_GetDayReservations(t *testing.T) {
	ctx := context.Background()
	conn, repo := newGRPCClient(t, config.APIConfig{})

	require.NoError(t, repo.CreateBooking(ctx, &models.Booking{
		FacilityID: testFacility, Date: testDate, Start: "10:00", End: "11:00", UserEmail: "a@campus.edu",
	}))

	out := new(structpb.Struct)
	err := conn.Invoke(ctx, methodGetDayReservations, mustStruct(t, map[string]any{
		"facilityId": testFacility, "date": testDate,
	}), out)
	require.NoError(t, err)

	list := out.GetFields()["reservations"].GetListValue().GetValues()
	require.Len(t, list, 1)
	assert.Equal(t, "10:00", list[0].GetStructValue().GetFields()["start"].GetStringValue())

	err = conn.Invoke(ctx, methodGetDayReservations, mustStruct(t, map[string]any{
		"facilityId": "NOPE-1", "date": testDate,
	}), out)
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = conn.Invoke(ctx, methodGetDayReservations, mustStruct(t, map[string]any{"facilityId": testFacility}), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_GetGlimpse(t *testing.T) {
	ctx := context.Background()
	conn, _ := newGRPCClient(t, config.APIConfig{})

	out := new(structpb.Struct)
	err := conn.Invoke(ctx, methodGetGlimpse, mustStruct(t, map[string]any{
		"ids":   []any{testFacility},
		"date":  testDate,
		"limit": 2,
	}), out)
	require.NoError(t, err)

	item := out.GetFields()["items"].GetStructValue().GetFields()[testFacility].GetStructValue()
	assert.Equal(t, models.GlimpseOK, item.GetFields()["status"].GetStringValue())
	assert.Len(t, item.GetFields()["slots"].GetListValue().GetValues(), 2)

	err = conn.Invoke(ctx, methodGetGlimpse, mustStruct(t, map[string]any{"date": testDate}), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = conn.Invoke(ctx, methodGetGlimpse, mustStruct(t, map[string]any{"ids": testFacility, "date": "bad"}), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ListFacilities(t *testing.T) {
	conn, _ := newGRPCClient(t, config.APIConfig{})

	out := new(structpb.Struct)
	err := conn.Invoke(context.Background(), methodListFacilities, mustStruct(t, map[string]any{
		"q": "main campus", "pageSize": 50,
	}), out)
	require.NoError(t, err)
	assert.Equal(t, float64(45), out.GetFields()["total"].GetNumberValue())
	assert.Len(t, out.GetFields()["items"].GetListValue().GetValues(), 45)
}

func TestGRPC_AuthRequired(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1", Permissions: []string{permReadFacilities}}},
		},
	}
	conn, _ := newGRPCClient(t, cfg)
	out := new(structpb.Struct)
	req := mustStruct(t, map[string]any{})

	err := conn.Invoke(context.Background(), methodListFacilities, req, out)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "k1", "x-api-extra", "e1")
	require.NoError(t, conn.Invoke(ctx, methodListFacilities, req, out))

	err = conn.Invoke(ctx, methodGetGlimpse, mustStruct(t, map[string]any{"ids": testFacility, "date": testDate}), out)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{permReadFacilities}},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}

	interceptor := NewAuthInterceptor(cfg).Unary()
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: methodListFacilities}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: methodGetGlimpse}, handler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1}}
	interceptor := NewAuthInterceptor(cfg).Unary()
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: methodListFacilities}

	md := metadata.Pairs("x-api-key", "client-a")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, err := interceptor(ctx, "req", info, handler)
	require.NoError(t, err)
	_, err = interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	other := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "client-b"))
	_, err = interceptor(other, "req", info, handler)
	assert.NoError(t, err)
}

func TestRecoveryInterceptor(t *testing.T) {
	logger := zerolog.New(io.Discard)
	interceptor := RecoveryUnaryInterceptor(&logger)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mk("a"), mk("b"))
	_, err := chain(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
