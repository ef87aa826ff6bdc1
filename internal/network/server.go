package network

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/types"
)

const (
	// alpnProtocol is the ALPN protocol identifier.
	alpnProtocol = "chainsnap/1"

	// defaultRequestTimeout bounds one request when the caller sets no deadline.
	defaultRequestTimeout = 30 * time.Second
)

// Config holds the configuration for a Server.
type Config struct {
	PrivateKey ed25519.PrivateKey // PrivateKey is the node's ed25519 identity key
	ListenAddr string             // ListenAddr is the address to listen on (e.g., ":9944")
}

// Server answers ledger queries over QUIC.
type Server struct {
	privateKey ed25519.PrivateKey // privateKey is the node's ed25519 private key
	publicKey  ed25519.PublicKey  // publicKey is the node's ed25519 public key
	listenAddr string             // listenAddr is the address to listen on
	tlsConfig  *tls.Config        // tlsConfig is the TLS configuration
	quicConfig *quic.Config       // quicConfig is the QUIC configuration
	src        ledger.Source      // src answers the queries

	listener *quic.Listener // listener is the QUIC listener

	ctx    context.Context    // ctx is the server's context
	cancel context.CancelFunc // cancel cancels the server's context
	wg     sync.WaitGroup     // wg waits for goroutines to finish
}

// NewServer creates a QUIC server for src.
func NewServer(cfg Config, src ledger.Source) (*Server, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	tlsConfig, err := serverTLS(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("server tls:\n%w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PrivateKey.Public().(ed25519.PublicKey),
		listenAddr: cfg.ListenAddr,
		tlsConfig:  tlsConfig,
		quicConfig: defaultQUICConfig(),
		src:        src,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// PublicKey returns the server's public key.
func (s *Server) PublicKey() ed25519.PublicKey {
	return s.publicKey
}

// Addr returns the listener's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Start begins accepting connections.
func (s *Server) Start() error {
	listener, err := quic.ListenAddr(s.listenAddr, s.tlsConfig, s.quicConfig)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Close stops the server and waits for in-flight requests.
func (s *Server) Close() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()

	return nil
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			return // Listener closed
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn accepts request streams until the connection or server closes.
func (s *Server) serveConn(conn *quic.Conn) {
	defer s.wg.Done()
	defer conn.CloseWithError(0, "closed")

	for {
		stream, err := conn.AcceptStream(s.ctx)
		if err != nil {
			logger.Debug("connection ended", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleStream(stream)
		}()
	}
}

// handleStream answers a single request on a bidirectional stream.
func (s *Server) handleStream(stream *quic.Stream) {
	defer stream.Close()

	stream.SetDeadline(time.Now().Add(defaultRequestTimeout))

	data, err := readMessage(stream)
	if err != nil {
		logger.Debug("stream read error", "error", err)
		return
	}

	q, err := decodeQuery(data)
	if err != nil {
		writeMessage(stream, encodeReply(reply{id: q.id, err: err.Error()}))
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, defaultRequestTimeout)
	defer cancel()

	if err := writeMessage(stream, encodeReply(s.answer(ctx, q))); err != nil {
		logger.Debug("stream write error", "error", err)
	}
}

// answer runs a query against the source.
func (s *Server) answer(ctx context.Context, q query) reply {
	r := reply{id: q.id}

	switch q.method {
	case types.QueryMethodHead:
		root, err := s.src.Head(ctx)
		if err != nil {
			r.err = err.Error()
			return r
		}
		r.root = root

	case types.QueryMethodPage:
		page, err := s.src.Page(ctx, q.page)
		if err != nil {
			r.err = err.Error()
			return r
		}
		r.root = page.Root
		r.page = page

	case types.QueryMethodFetch:
		fetched, err := s.src.Fetch(ctx, q.fetch)
		if err != nil {
			r.err = err.Error()
			return r
		}
		r.root = fetched.Root
		r.data = fetched.Data
		r.found = fetched.Found
	}

	return r
}
