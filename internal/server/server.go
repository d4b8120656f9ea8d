// Package server exposes a world's terminals over gRPC and hot-reloads the
// scheduler settings file.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/scheduler"
)

// DefaultAddr is where serve listens when no address is given.
const DefaultAddr = "127.0.0.1:7400"

// Config holds gRPC server configuration.
type Config struct {
	Addr         string
	SettingsPath string
	Logger       zerolog.Logger
}

// Server implements netshell.v1.Terminal on top of a scheduler.
type Server struct {
	sched *scheduler.Scheduler
	cfg   Config
	log   zerolog.Logger

	mu           sync.RWMutex
	settingsHash string

	grpcServer *grpc.Server
}

// New creates a server. The scheduler's owner loop must be run separately.
func New(sched *scheduler.Scheduler, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		sched: sched,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "server").Logger(),
	}
	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.logCalls))
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.log.Info().Str("addr", lis.Addr().String()).Msg("listening")
	return s.grpcServer.Serve(lis)
}

// ServeOn serves on the given listener.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// SettingsHash returns the hash of the last loaded settings file.
func (s *Server) SettingsHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsHash
}

// ReloadSettings re-reads the settings file and swaps it into the scheduler.
// Called by the hot-reloader on file change.
func (s *Server) ReloadSettings(ctx context.Context) error {
	settings, hash, err := scheduler.LoadSettings(s.cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}
	if err := s.sched.UpdateSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to apply settings: %w", err)
	}
	s.mu.Lock()
	s.settingsHash = hash
	s.mu.Unlock()
	return nil
}

// Open implements the Open RPC.
func (s *Server) Open(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req OpenRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	st, err := s.sched.OpenTerminal(ctx, req.Host, req.Login)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(st)
}

// Command implements the Command RPC. Command failures are part of the
// reply; only a line that could not run is an RPC error.
func (s *Server) Command(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CommandRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.sched.Command(ctx, req.TerminalID, req.Line)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(res)
}

// Interrupt implements the Interrupt RPC.
func (s *Server) Interrupt(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TerminalRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	killed, err := s.sched.Interrupt(req.TerminalID)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(InterruptReply{Interrupted: killed})
}

// Status implements the Status RPC.
func (s *Server) Status(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TerminalRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	st, err := s.sched.Status(req.TerminalID)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(st)
}

// Drain implements the Drain RPC.
func (s *Server) Drain(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TerminalRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lines, err := s.sched.Drain(req.TerminalID)
	if err != nil {
		return nil, toStatus(err)
	}
	if lines == nil {
		lines = []string{}
	}
	return reply(DrainReply{Lines: lines})
}

// Call implements the Call RPC. Intrinsic failures come back as a result
// map with ok=false, the way scripts see them.
func (s *Server) Call(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CallRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	caller, err := s.sched.CallerOf(req.TerminalID)
	if err != nil {
		return nil, toStatus(err)
	}
	res, _ := s.sched.Call(ctx, caller, req.Name, req.Args)
	return reply(res)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps a failure code onto the closest gRPC status.
func toStatus(err error) error {
	var c codes.Code
	switch model.CodeOf(err) {
	case model.CodeInvalidArgs, model.CodeUnknownCommand:
		c = codes.InvalidArgument
	case model.CodeNotFound:
		c = codes.NotFound
	case model.CodeConflict:
		c = codes.AlreadyExists
	case model.CodePermissionDenied, model.CodeNetDenied:
		c = codes.PermissionDenied
	case model.CodeAuthFailed:
		c = codes.Unauthenticated
	case model.CodeRateLimited:
		c = codes.ResourceExhausted
	default:
		c = codes.Internal
	}
	return status.Errorf(c, "%s: %s", model.CodeOf(err), model.MessageOf(err))
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).Dur("elapsed", time.Since(start)).Msg("rpc")
	return resp, err
}
