package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

// Client is a thin MatchService client over any connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method with req encoded as a Struct and decodes the
// response into resp when it is non-nil.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := ToStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return FromStruct(out, resp)
}

// SnapshotStream receives snapshots from WatchSnapshots.
type SnapshotStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next snapshot.
func (s *SnapshotStream) Recv() (*state.Snapshot, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	snap := new(state.Snapshot)
	if err := FromStruct(msg, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Watch opens a snapshot stream for matchID.
func (c *Client) Watch(ctx context.Context, matchID string, opts ...grpc.CallOption) (*SnapshotStream, error) {
	desc := &ServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, FullMethod(MethodWatchSnapshots), opts...)
	if err != nil {
		return nil, err
	}
	in, err := ToStruct(Request{MatchID: matchID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &SnapshotStream{stream: stream}, nil
}
