// Package api exposes the match registry over gRPC as
// tdengine.v1.MatchService. Requests and responses are google.protobuf.Struct
// values whose fields use the same camelCase names as the JSON snapshots.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "tdengine.v1.MatchService"

// Method names of MatchService.
const (
	MethodCreateMatch    = "CreateMatch"
	MethodJoinMatch      = "JoinMatch"
	MethodLeaveMatch     = "LeaveMatch"
	MethodRejoin         = "Rejoin"
	MethodListMatches    = "ListMatches"
	MethodGetSnapshot    = "GetSnapshot"
	MethodSetReady       = "SetReady"
	MethodStartGame      = "StartGame"
	MethodStartWave      = "StartWave"
	MethodPlaceTower     = "PlaceTower"
	MethodSellTower      = "SellTower"
	MethodPause          = "Pause"
	MethodResume         = "Resume"
	MethodReset          = "Reset"
	MethodWatchSnapshots = "WatchSnapshots"
)

// FullMethod returns the "/service/method" path of a MatchService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MatchServiceServer is the server API for MatchService.
type MatchServiceServer interface {
	CreateMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LeaveMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Rejoin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetReady(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartWave(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SellTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pause(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resume(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchSnapshots(*structpb.Struct, grpc.ServerStream) error
}

type unaryMethod func(MatchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryDesc(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(MatchServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func watchSnapshotsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MatchServiceServer).WatchSnapshots(in, stream)
}

// ServiceDesc describes MatchService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryDesc(MethodCreateMatch, MatchServiceServer.CreateMatch),
		unaryDesc(MethodJoinMatch, MatchServiceServer.JoinMatch),
		unaryDesc(MethodLeaveMatch, MatchServiceServer.LeaveMatch),
		unaryDesc(MethodRejoin, MatchServiceServer.Rejoin),
		unaryDesc(MethodListMatches, MatchServiceServer.ListMatches),
		unaryDesc(MethodGetSnapshot, MatchServiceServer.GetSnapshot),
		unaryDesc(MethodSetReady, MatchServiceServer.SetReady),
		unaryDesc(MethodStartGame, MatchServiceServer.StartGame),
		unaryDesc(MethodStartWave, MatchServiceServer.StartWave),
		unaryDesc(MethodPlaceTower, MatchServiceServer.PlaceTower),
		unaryDesc(MethodSellTower, MatchServiceServer.SellTower),
		unaryDesc(MethodPause, MatchServiceServer.Pause),
		unaryDesc(MethodResume, MatchServiceServer.Resume),
		unaryDesc(MethodReset, MatchServiceServer.Reset),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    MethodWatchSnapshots,
		Handler:       watchSnapshotsHandler,
		ServerStreams: true,
	}},
	Metadata: "tdengine/v1/match_service.proto",
}

// RegisterMatchService registers srv on s.
func RegisterMatchService(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
