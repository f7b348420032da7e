package main

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/td-engine/internal/api"
	"github.com/signalsfoundry/td-engine/internal/config"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

func TestMatchServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.GRPCAddr = lis.Addr().String()
	cfg.HTTPAddr = ""
	cfg.MetricsAddr = ""
	cfg.SSHAddr = ""
	cfg.TickInterval = 10 * time.Millisecond

	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := api.NewClient(conn)

	var created struct {
		Match state.Info `json:"match"`
	}
	if err := client.Call(ctx, api.MethodCreateMatch, api.Request{PlayerID: "alice"}, &created, grpc.WaitForReady(true)); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if created.Match.ID == "" {
		t.Fatalf("CreateMatch returned no id: %+v", created)
	}

	watch, err := client.Watch(ctx, created.Match.ID)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	snap, err := watch.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if snap.MatchID != created.Match.ID {
		t.Fatalf("snapshot for %q, want %q", snap.MatchID, created.Match.ID)
	}

	// The open watch must not hold up shutdown.
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunRejectsMissingCatalog(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	cfg := config.Default()
	cfg.HTTPAddr, cfg.MetricsAddr, cfg.SSHAddr = "", "", ""
	cfg.CatalogPath = "testdata/does-not-exist.json"

	if err := run(context.Background(), cfg, logging.Noop(), lis); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
