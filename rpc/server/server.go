package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dCol/lib/cache/local"
	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/ValentinKolb/dCol/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewCacheServer creates a new cache server hosting one local cache per
// namespace. It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewCacheServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewCacheServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *CacheServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created cache server")
	Logger.Infof("%s", config.String())

	return &CacheServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		memory:     local.NewSharedMemory(config.MaxEntries),
		adapter:    NewCacheServerAdapter(),
	}
}

// CacheServer serves a local.SharedMemory to remote clients.
type CacheServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	memory     *local.SharedMemory
	adapter    IRPCServerAdapter
}

// Memory returns the shared memory served by s.
func (s *CacheServer) Memory() *local.SharedMemory {
	return s.memory
}

// Handle decodes a request, dispatches it to the adapter and encodes the
// response. Faults are reported as error messages, never as transport errors.
func (s *CacheServer) Handle(req []byte) []byte {
	start := time.Now()

	var msg common.Message
	var respMsg *common.Message
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = s.adapter.Handle(&msg, s.memory)
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_rpc_requests_total{type=%q}`, msg.MsgType)).Inc()
	if respMsg.Err != "" {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_rpc_errors_total{type=%q}`, msg.MsgType)).Inc()
		Logger.Debugf("%s %s failed: %s", msg.MsgType, msg.Namespace, respMsg.Err)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dcol_rpc_request_duration_seconds{type=%q}`, msg.MsgType)).UpdateDuration(start)
	return val
}

// Serve registers the handler and starts the transport layer. It blocks
// until the transport stops.
func (s *CacheServer) Serve() error {
	s.transport.RegisterHandler(s.Handle)
	return s.transport.Listen(s.config)
}

// Close stops the transport.
func (s *CacheServer) Close() error {
	return s.transport.Close()
}
