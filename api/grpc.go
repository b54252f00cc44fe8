package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcHealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"pricecmp/model"
)

const (
	searchServiceName  = "pricecmp.v1.SearchService"
	searchMethodSearch = "/" + searchServiceName + "/Search"
)

// SearchServiceServer answers one-shot searches. Requests and responses are
// google.protobuf.Struct documents with the same fields as GET /api/search.
type SearchServiceServer interface {
	Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var searchServiceDesc = grpc.ServiceDesc{
	ServiceName: searchServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: searchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricecmp/v1/search.proto",
}

func searchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServiceServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: searchMethodSearch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServiceServer).Search(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcSearchServer struct {
	s *Server
}

// RegisterGRPC adds the search, health and reflection services to g.
func (s *Server) RegisterGRPC(g *grpc.Server) {
	g.RegisterService(&searchServiceDesc, &grpcSearchServer{s: s})
	healthSrv := grpcHealth.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(searchServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, healthSrv)
	reflection.Register(g)
}

func (s *Server) startGRPC() error {
	if s.cfg.Server.GRPCListen == "" {
		return nil
	}
	if s.grpcServer != nil {
		return nil
	}

	lis, err := net.Listen("tcp", s.cfg.Server.GRPCListen)
	if err != nil {
		return err
	}

	grpcSrv := grpc.NewServer()
	s.RegisterGRPC(grpcSrv)
	s.grpcServer = grpcSrv

	go func() {
		s.log.Info("gRPC server starting", "listen", s.cfg.Server.GRPCListen)
		if serveErr := grpcSrv.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			s.log.Error("gRPC server error", "err", serveErr)
		}
	}()

	return nil
}

func (g *grpcSearchServer) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := searchRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req.TraceID = traceIDFromContext(ctx)

	res, err := g.s.executeSearchCore(ctx, req)
	if err != nil {
		return nil, mapSearchError(err)
	}

	out, err := toStruct(map[string]any{
		"results":          res.Results,
		"total":            res.Total,
		"has_product_data": res.HasProductData,
		"page_type":        res.PageType,
		"vendor_code":      res.VendorCode,
		"trace_id":         res.TraceID,
		"latency_ms":       res.LatencyMs,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func searchRequestFromStruct(in *structpb.Struct) (searchCoreRequest, error) {
	var req searchCoreRequest
	fields := in.GetFields()

	req.Query = fields["query"].GetStringValue()
	req.URL = fields["url"].GetStringValue()
	req.Category = model.Category(fields["category"].GetStringValue())
	req.Sort = model.SortKey(fields["sort"].GetStringValue())

	if v, ok := fields["max_price"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			p, err := wholeNumber(v, "max_price")
			if err != nil {
				return req, err
			}
			req.MaxPrice = &p
		}
	}
	if v, ok := fields["limit"]; ok {
		n, err := wholeNumber(v, "limit")
		if err != nil {
			return req, err
		}
		if n < 0 {
			return req, fmt.Errorf("limit must not be negative")
		}
		req.Limit = int(n)
	}
	return req, nil
}

func wholeNumber(v *structpb.Value, field string) (int64, error) {
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%s must be a whole number", field)
	}
	return int64(f), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func mapSearchError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	case errors.Is(err, errInvalidArgument):
		return status.Error(codes.InvalidArgument, msg)
	case isNotFound(err) || strings.Contains(lower, "not found"):
		return status.Error(codes.NotFound, msg)
	default:
		return status.Error(codes.Unavailable, msg)
	}
}

func traceIDFromContext(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-trace-id"); len(values) > 0 {
			trace := strings.TrimSpace(values[0])
			if trace != "" {
				return trace
			}
		}
	}
	return genRequestID()
}
