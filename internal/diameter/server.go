package diameter

import (
	"net"
	"sync"

	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/fiorix/go-diameter/diam/sm"
	"github.com/pkg/errors"

	"github.com/free5gc/ocs/internal/logger"
)

// Server accepts Diameter peers. The go-diameter state machine answers
// CER and DWR, CCR goes to the handler.
type Server struct {
	network string
	addr    string
	mux     *sm.StateMachine
	srv     *diam.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	// drained is closed when the error report loop has returned.
	drained chan struct{}
}

func NewServer(network, addr string, settings *sm.Settings, ccr diam.Handler) *Server {
	mux := sm.New(settings)
	mux.Handle("CCR", ccr)

	return &Server{
		network: network,
		addr:    addr,
		mux:     mux,
		srv: &diam.Server{
			Network: network,
			Addr:    addr,
			Handler: mux,
			Dict:    dict.Default,
		},
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen(s.network, s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen diameter %s %s", s.network, s.addr)
	}
	done, drained := make(chan struct{}), make(chan struct{})
	s.mu.Lock()
	s.listener = l
	s.done, s.drained = done, drained
	s.mu.Unlock()
	logger.DiamLog.Infof("Diameter server listening on %s %s", s.network, l.Addr())

	go s.drainErrorReports(done, drained)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.DiamLog.Errorf("panic: %v", p)
			}
		}()
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.DiamLog.Infof("Diameter server stopped: %+v", err)
		}
	}()
	return nil
}

func (s *Server) drainErrorReports(done <-chan struct{}, drained chan<- struct{}) {
	defer close(drained)
	reports := s.mux.ErrorReports()
	for {
		select {
		case <-done:
			return
		case report, ok := <-reports:
			if !ok || report == nil {
				return
			}
			logger.DiamLog.Warnf("Diameter error report: %v", report.Error)
		}
	}
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener. Established peer connections are closed by the
// peers or on process exit.
func (s *Server) Stop() {
	s.mu.Lock()
	l, done := s.listener, s.done
	s.listener, s.done = nil, nil
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
	if l != nil {
		if err := l.Close(); err != nil {
			logger.DiamLog.Warnf("Close diameter listener: %+v", err)
		}
	}
	logger.DiamLog.Infof("Diameter server stopped")
}
