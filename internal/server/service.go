package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "netshell.v1.Terminal"

// TerminalServer is the server side of netshell.v1.Terminal. Every message
// is a google.protobuf.Struct.
type TerminalServer interface {
	Open(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Command(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Interrupt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Drain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Call(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(TerminalServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(TerminalServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return m(srv.(TerminalServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes netshell.v1.Terminal for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TerminalServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Open", TerminalServer.Open),
		unary("Command", TerminalServer.Command),
		unary("Interrupt", TerminalServer.Interrupt),
		unary("Status", TerminalServer.Status),
		unary("Drain", TerminalServer.Drain),
		unary("Call", TerminalServer.Call),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netshell/v1/terminal.proto",
}

// Client calls netshell.v1.Terminal.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, name string, in any, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, req, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// Open opens a terminal for login on hostID.
func (c *Client) Open(ctx context.Context, hostID, login string, opts ...grpc.CallOption) (StatusReply, error) {
	var out StatusReply
	err := c.invoke(ctx, "Open", OpenRequest{Host: hostID, Login: login}, &out, opts...)
	return out, err
}

// Command runs one line on a terminal.
func (c *Client) Command(ctx context.Context, terminalID, line string, opts ...grpc.CallOption) (CommandReply, error) {
	var out CommandReply
	err := c.invoke(ctx, "Command", CommandRequest{TerminalID: terminalID, Line: line}, &out, opts...)
	return out, err
}

// Interrupt kills the program running on a terminal.
func (c *Client) Interrupt(ctx context.Context, terminalID string, opts ...grpc.CallOption) (InterruptReply, error) {
	var out InterruptReply
	err := c.invoke(ctx, "Interrupt", TerminalRequest{TerminalID: terminalID}, &out, opts...)
	return out, err
}

// Status returns a terminal snapshot.
func (c *Client) Status(ctx context.Context, terminalID string, opts ...grpc.CallOption) (StatusReply, error) {
	var out StatusReply
	err := c.invoke(ctx, "Status", TerminalRequest{TerminalID: terminalID}, &out, opts...)
	return out, err
}

// Drain returns pending background output of a terminal.
func (c *Client) Drain(ctx context.Context, terminalID string, opts ...grpc.CallOption) (DrainReply, error) {
	var out DrainReply
	err := c.invoke(ctx, "Drain", TerminalRequest{TerminalID: terminalID}, &out, opts...)
	return out, err
}

// Call runs one intrinsic as a terminal's acting identity.
func (c *Client) Call(ctx context.Context, terminalID, name string, args map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	var out map[string]any
	err := c.invoke(ctx, "Call", CallRequest{TerminalID: terminalID, Name: name, Args: args}, &out, opts...)
	return out, err
}

// toStruct converts any JSON-shaped value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into out through its JSON form.
func fromStruct(s *structpb.Struct, out any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
