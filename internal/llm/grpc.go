package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// GeneratorServiceName is the gRPC service exposed by genserver.
	GeneratorServiceName = "writepal.v1.Generator"
	generateMethod       = "/" + GeneratorServiceName + "/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcClientConfig holds configuration for the remote generator client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended after the defaults; tests use them to dial bufconn.
	DialOptions []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration for addr.
func DefaultGrpcClientConfig(addr string) GrpcClientConfig {
	return GrpcClientConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   60 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClient is a Generator backed by a remote writepal genserver.
type GrpcClient struct {
	conn           *grpc.ClientConn
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewGrpcClient dials the generator service and waits until it is ready.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("generator address: %w", errdefs.ErrInvalidArgument)
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("generator at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to generator service", "address", cfg.Address)
	return &GrpcClient{conn: conn, requestTimeout: cfg.RequestTimeout, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Generate performs one unary Generate call.
func (c *GrpcClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := promptToStruct(prompt)
	if err != nil {
		return "", err
	}
	resp := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return "", fmt.Errorf("remote generate: %w", errgrpc.ToNative(err))
	}
	return resp.GetValue(), nil
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

func promptToStruct(p Prompt) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"task":   string(p.Task),
		"system": p.System,
		"user":   p.User,
	})
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	return s, nil
}

func structToPrompt(s *structpb.Struct) Prompt {
	fields := s.GetFields()
	return Prompt{
		Task:   Task(fields["task"].GetStringValue()),
		System: fields["system"].GetStringValue(),
		User:   fields["user"].GetStringValue(),
	}
}

// generatorServer is the handler type registered with grpc.Server.
type generatorServer interface {
	generate(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
}

// GrpcServer exposes a local Generator over gRPC.
type GrpcServer struct {
	gen    Generator
	logger *slog.Logger
}

// NewGrpcServer wraps gen.
func NewGrpcServer(gen Generator, logger *slog.Logger) *GrpcServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcServer{gen: gen, logger: logger}
}

// Register attaches the Generator service to s.
func (g *GrpcServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&generatorServiceDesc, g)
}

func (g *GrpcServer) generate(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	prompt := structToPrompt(req)
	if prompt.User == "" {
		return nil, errgrpc.ToGRPC(fmt.Errorf("empty user prompt: %w", errdefs.ErrInvalidArgument))
	}
	start := time.Now()
	out, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error("generate failed", "task", prompt.Task, "error", err)
		return nil, errgrpc.ToGRPC(err)
	}
	g.logger.Debug("generate completed", "task", prompt.Task, "duration", time.Since(start))
	return wrapperspb.String(out), nil
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(generatorServer).generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(generatorServer).generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var generatorServiceDesc = grpc.ServiceDesc{
	ServiceName: GeneratorServiceName,
	HandlerType: (*generatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "writepal/v1/generator.proto",
}
