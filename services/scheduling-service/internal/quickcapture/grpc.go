package quickcapture

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// The capture service speaks plain google.protobuf.Struct messages:
// {"text": "..."} in, {"service_name", "stylist_name", "start_time"} out.
const (
	ServiceName = "salonbook.capture.v1.QuickCapture"
	parseMethod = "/" + ServiceName + "/Parse"
)

// GRPCParser calls a remote capture service.
type GRPCParser struct {
	conn grpc.ClientConnInterface
}

func NewGRPCParser(conn grpc.ClientConnInterface) *GRPCParser {
	return &GRPCParser{conn: conn}
}

func (p *GRPCParser) Parse(ctx context.Context, text string) (Parsed, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return Parsed{}, err
	}
	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, parseMethod, req, resp); err != nil {
		return Parsed{}, err
	}
	return Parsed{
		ServiceName: stringField(resp, "service_name"),
		StylistName: stringField(resp, "stylist_name"),
		StartTime:   stringField(resp, "start_time"),
	}, nil
}

func stringField(s *structpb.Struct, key string) string {
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// RegisterServer exposes p as the capture service on s.
func RegisterServer(s grpc.ServiceRegistrar, p Parser) {
	s.RegisterService(&serviceDesc, p)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Parser)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Parse",
		Handler:    parseHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func parseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := &structpb.Struct{}
	if err := dec(req); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, in any) (any, error) {
		text := stringField(in.(*structpb.Struct), "text")
		if text == "" {
			return nil, status.Error(codes.InvalidArgument, "text is required")
		}
		parsed, err := srv.(Parser).Parse(ctx, text)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		out := map[string]any{}
		for k, v := range map[string]string{
			"service_name": parsed.ServiceName,
			"stylist_name": parsed.StylistName,
			"start_time":   parsed.StartTime,
		} {
			if v != "" {
				out[k] = v
			}
		}
		resp, err := structpb.NewStruct(out)
		if err != nil {
			return nil, fmt.Errorf("encode parse result: %w", err)
		}
		return resp, nil
	}
	if interceptor == nil {
		return call(ctx, req)
	}
	return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: parseMethod}, call)
}
