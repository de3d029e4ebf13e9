package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/models"
)

const ServiceName = "connect4bot"

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves svc under the name "Rounds".
func NewServer(addr string, svc *RoundsService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Rounds", svc); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start accepts connections until the listener is closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Rounds is the part of services.RoundService exposed over RPC.
type Rounds interface {
	History(id int) (string, error)
	Archived(ctx context.Context, id int) (*models.RoundRecord, error)
	Stats(ctx context.Context, userID string) (*models.PlayerStats, error)
}

// RoundsService exposes read-only round queries. Methods follow the
// net/rpc shape: exported args, pointer reply, error result.
type RoundsService struct {
	rounds  Rounds
	timeout time.Duration
}

func NewRoundsService(rounds Rounds) *RoundsService {
	return &RoundsService{rounds: rounds, timeout: 5 * time.Second}
}

type RoundArgs struct {
	RoundID int
}

type HistoryReply struct {
	Text string
}

type RecordReply struct {
	Record *models.RoundRecord
}

type StatsArgs struct {
	UserID string
}

type StatsReply struct {
	Stats *models.PlayerStats
}

// History returns the move history of a live round.
func (rs *RoundsService) History(args *RoundArgs, reply *HistoryReply) error {
	text, err := rs.rounds.History(args.RoundID)
	if err != nil {
		return err
	}
	reply.Text = text
	return nil
}

// Record returns the archived record of a finished round.
func (rs *RoundsService) Record(args *RoundArgs, reply *RecordReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()

	rec, err := rs.rounds.Archived(ctx, args.RoundID)
	if err != nil {
		return err
	}
	reply.Record = rec
	return nil
}

func (rs *RoundsService) Stats(args *StatsArgs, reply *StatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()

	stats, err := rs.rounds.Stats(ctx, args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

// HealthServer is the standard gRPC health service.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{listener: listener, grpc: srv, health: hs}, nil
}

func (h *HealthServer) Addr() string { return h.listener.Addr().String() }

// Serve blocks until ctx is cancelled.
func (h *HealthServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.grpc.GracefulStop()
	}()

	logger.Log.Infof("Health server listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
