package jsonrpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/blockengine"
	"github.com/mezonai/sequencer/common"
	"github.com/mezonai/sequencer/errors"
	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/exception"
	"github.com/mezonai/sequencer/jsonx"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/mempool"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/ratelimit"
	"github.com/mezonai/sequencer/store"
	"github.com/mezonai/sequencer/transaction"
)

// MaxRequestBodySize bounds one HTTP request.
const MaxRequestBodySize = 1 << 20

// --- Error mapping ---

func toJRPC2Error(code jrpc2.Code, err error) error {
	var networkError *errors.NetworkError
	if stderrors.As(err, &networkError) {
		return jrpc2.Errorf(code, "%s", networkError.Message).WithData(networkError)
	}
	return jrpc2.Errorf(code, "%s", err.Error())
}

func invalidParams(code errors.NetworkErrorCode, message string) error {
	return toJRPC2Error(jrpc2.InvalidParams, errors.NewError(code, message))
}

// --- Params/Results ---

type sendTxParams struct {
	Transaction string `json:"transaction"`
	Encoding    string `json:"encoding,omitempty"`
}

type sendTxResponse struct {
	Signature string `json:"signature"`
}

type pendingTxsResponse struct {
	TotalCount int      `json:"total_count"`
	Signatures []string `json:"signatures"`
}

type txStatusParams struct {
	Signature string `json:"signature"`
}

type txStatusResponse struct {
	Signature string `json:"signature"`
	Pending   bool   `json:"pending"`
	Slot      uint64 `json:"slot,omitempty"`
}

type txWaitParams struct {
	Signature string `json:"signature"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

// Tx wait states
const (
	TxStateIncluded = "included"
	TxStateDropped  = "dropped"
	TxStatePending  = "pending"
)

type txWaitResponse struct {
	Signature string `json:"signature"`
	State     string `json:"state"`
	Slot      uint64 `json:"slot,omitempty"`
	BlockHash string `json:"block_hash,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

const (
	defaultTxWaitTimeout = 10 * time.Second
	maxTxWaitTimeout     = 30 * time.Second
)

type chainSlotResponse struct {
	Slot      uint64 `json:"slot"`
	Blockhash string `json:"blockhash"`
}

type chainBlockParams struct {
	Slot uint64 `json:"slot"`
}

type healthResponse struct {
	Status string `json:"status"`
	Slot   uint64 `json:"slot"`
}

// ChainState reports the current chain tip. *blockengine.Engine implements it.
type ChainState interface {
	State() blockengine.State
}

// --- Server ---

type bridge interface {
	http.Handler
	Close() error
}

type Server struct {
	addr       string
	pool       *mempool.Pool
	chain      ChainState
	blockStore store.BlockStore
	router     *events.EventRouter
	corsConfig CORSConfig
	limiter    *ratelimit.RateLimiter

	bridge     bridge
	httpServer *http.Server
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// NewServer wires the client API. blockStore and router may be nil; block
// lookups then fail with store_unavailable.
func NewServer(addr string, pool *mempool.Pool, chain ChainState, blockStore store.BlockStore, router *events.EventRouter) *Server {
	s := &Server{
		addr:       addr,
		pool:       pool,
		chain:      chain,
		blockStore: blockStore,
		router:     router,
	}
	s.bridge = jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	return s
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// SetRateLimiter limits requests per client IP. nil disables limiting.
func (s *Server) SetRateLimiter(rl *ratelimit.RateLimiter) {
	s.limiter = rl
}

// Handler returns the HTTP handler serving every method on "/".
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		ip := extractClientIPFromRequest(r)
		if s.limiter != nil && !s.limiter.Allow(ip) {
			logx.Warn("JSONRPC", "Rate limited client ", ip)
			writeRateLimited(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		s.bridge.ServeHTTP(w, r)
	})
}

// Start binds addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	logx.Info("JSONRPC", "Listening on ", ln.Addr().String())
	exception.SafeGo("jsonrpcServe", func() {
		if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logx.Error("JSONRPC", "Server stopped: ", err)
		}
	})
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.bridge.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodTxSend:      handler.New(s.rpcSendTx),
		MethodTxPending:   handler.New(s.rpcPendingTxs),
		MethodTxStatus:    handler.New(s.rpcTxStatus),
		MethodTxWait:      handler.New(s.rpcTxWait),
		MethodChainSlot:   handler.New(s.rpcChainSlot),
		MethodChainBlock:  handler.New(s.rpcChainBlock),
		MethodHealthCheck: handler.New(s.rpcHealth),
	}
}

// --- Implementations ---

func (s *Server) rpcSendTx(ctx context.Context, p sendTxParams) (*sendTxResponse, error) {
	monitoring.IncreaseIngressTxCount("jsonrpc")

	switch strings.ToLower(p.Encoding) {
	case "", common.EncodingBase64, common.EncodingBase58:
	default:
		monitoring.RecordRejectedTx(monitoring.TxMalformed)
		return nil, invalidParams(errors.ErrCodeInvalidEncoding, errors.ErrMsgInvalidEncoding)
	}
	raw, err := common.DecodePayload(p.Transaction, p.Encoding)
	if err != nil {
		monitoring.RecordRejectedTx(monitoring.TxMalformed)
		return nil, invalidParams(errors.ErrCodeInvalidTransaction, errors.ErrMsgInvalidTransaction)
	}
	tx, err := transaction.Parse(raw)
	if err != nil {
		monitoring.RecordRejectedTx(monitoring.TxMalformed)
		return nil, invalidParams(parseErrorCode(err))
	}

	if err := s.pool.Push(tx); err != nil {
		if stderrors.Is(err, mempool.ErrDuplicate) {
			monitoring.RecordRejectedTx(monitoring.TxDuplicated)
			return nil, invalidParams(errors.ErrCodeDuplicateTransaction, errors.ErrMsgDuplicateTransaction)
		}
		logx.Error("JSONRPC", "Failed to stage transaction: ", err)
		return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeInternal, errors.ErrMsgInternal))
	}

	if s.router != nil {
		s.router.PublishTransactionEvent(events.NewTransactionAddedToPool(tx.Signature, "jsonrpc"))
	}
	logx.Debug("JSONRPC", "Staged transaction ", tx.Signature)
	return &sendTxResponse{Signature: tx.Signature.String()}, nil
}

func parseErrorCode(err error) (errors.NetworkErrorCode, string) {
	switch {
	case stderrors.Is(err, transaction.ErrOversized):
		return errors.ErrCodeInvalidTransaction, fmt.Sprintf(errors.ErrMsgTransactionTooLarge, transaction.MaxWireSize)
	case stderrors.Is(err, transaction.ErrMissingSig):
		return errors.ErrCodeInvalidSignature, errors.ErrMsgTransactionNoSignature
	default:
		return errors.ErrCodeInvalidTransaction, errors.ErrMsgInvalidTransaction
	}
}

func (s *Server) rpcPendingTxs(ctx context.Context) (*pendingTxsResponse, error) {
	pending := s.pool.Pending()
	out := &pendingTxsResponse{TotalCount: len(pending), Signatures: make([]string, len(pending))}
	for i, sig := range pending {
		out.Signatures[i] = sig.String()
	}
	return out, nil
}

func (s *Server) rpcTxStatus(ctx context.Context, p txStatusParams) (*txStatusResponse, error) {
	sig, err := solana.SignatureFromBase58(p.Signature)
	if err != nil {
		return nil, invalidParams(errors.ErrCodeInvalidSignature, errors.ErrMsgInvalidSignature)
	}
	if s.pool.Contains(sig) {
		return &txStatusResponse{Signature: p.Signature, Pending: true}, nil
	}
	if s.blockStore != nil {
		slot, ok, err := s.blockStore.SlotOf(sig)
		if err != nil {
			logx.Error("JSONRPC", "Failed to look up tx slot: ", err)
			return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeInternal, errors.ErrMsgInternal))
		}
		if ok {
			return &txStatusResponse{Signature: p.Signature, Slot: slot}, nil
		}
	}
	return nil, invalidParams(errors.ErrCodeTransactionNotFound, errors.ErrMsgTransactionNotFound)
}

// rpcTxWait blocks until the transaction is included in a block or dropped
// from the pool, or until the timeout passes with the transaction still pending.
func (s *Server) rpcTxWait(ctx context.Context, p txWaitParams) (*txWaitResponse, error) {
	sig, err := solana.SignatureFromBase58(p.Signature)
	if err != nil {
		return nil, invalidParams(errors.ErrCodeInvalidSignature, errors.ErrMsgInvalidSignature)
	}
	if s.router == nil {
		return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeInternal, errors.ErrMsgInternal))
	}

	// subscribe before looking at the pool so an inclusion in between is not
	// missed; blocks are stored before their transactions leave the pool
	subscriberID, eventChan := s.router.Subscribe()
	defer s.router.Unsubscribe(subscriberID)

	if !s.pool.Contains(sig) {
		if s.blockStore != nil {
			slot, ok, err := s.blockStore.SlotOf(sig)
			if err != nil {
				logx.Error("JSONRPC", "Failed to look up tx slot: ", err)
				return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeInternal, errors.ErrMsgInternal))
			}
			if ok {
				return &txWaitResponse{Signature: p.Signature, State: TxStateIncluded, Slot: slot}, nil
			}
		}
		return nil, invalidParams(errors.ErrCodeTransactionNotFound, errors.ErrMsgTransactionNotFound)
	}

	timeout := defaultTxWaitTimeout
	if p.TimeoutMs > 0 {
		timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	if timeout > maxTxWaitTimeout {
		timeout = maxTxWaitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return &txWaitResponse{Signature: p.Signature, State: TxStatePending}, nil
			}
			if res := waitResult(event, sig); res != nil {
				res.Signature = p.Signature
				return res, nil
			}
		case <-timer.C:
			return &txWaitResponse{Signature: p.Signature, State: TxStatePending}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func waitResult(event events.SequencerEvent, sig solana.Signature) *txWaitResponse {
	switch e := event.(type) {
	case *events.TransactionIncludedInBlock:
		if e.Signature == sig {
			return &txWaitResponse{State: TxStateIncluded, Slot: e.Slot, BlockHash: e.BlockHash.String()}
		}
	case *events.TransactionDropped:
		if e.Signature == sig {
			return &txWaitResponse{State: TxStateDropped, Reason: e.Reason}
		}
	}
	return nil
}

func (s *Server) rpcChainSlot(ctx context.Context) (*chainSlotResponse, error) {
	st := s.chain.State()
	return &chainSlotResponse{Slot: st.CurrentSlot, Blockhash: st.CurrentBlockhash.String()}, nil
}

func (s *Server) rpcChainBlock(ctx context.Context, p chainBlockParams) (*block.Block, error) {
	if s.blockStore == nil {
		return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeStoreUnavailable, errors.ErrMsgStoreUnavailable))
	}
	blk, err := s.blockStore.Block(p.Slot)
	if err != nil {
		logx.Error("JSONRPC", "Failed to read block: ", err)
		return nil, toJRPC2Error(jrpc2.InternalError, errors.NewError(errors.ErrCodeInternal, errors.ErrMsgInternal))
	}
	if blk == nil {
		return nil, invalidParams(errors.ErrCodeBlockNotFound, errors.ErrMsgBlockNotFound)
	}
	return blk, nil
}

func (s *Server) rpcHealth(ctx context.Context) (*healthResponse, error) {
	return &healthResponse{Status: "ok", Slot: s.chain.State().CurrentSlot}, nil
}

// --- Helpers ---

type rateLimitedReply struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      interface{}         `json:"id"`
	Error   rateLimitedErrorObj `json:"error"`
}

type rateLimitedErrorObj struct {
	Code    int                  `json:"code"`
	Message string               `json:"message"`
	Data    *errors.NetworkError `json:"data"`
}

// CodeRateLimited is the JSON-RPC error code sent with HTTP 429.
const CodeRateLimited = -32029

func writeRateLimited(w http.ResponseWriter) {
	body, _ := jsonx.Marshal(rateLimitedReply{
		JSONRPC: "2.0",
		Error: rateLimitedErrorObj{
			Code:    CodeRateLimited,
			Message: errors.ErrMsgRateLimited,
			Data:    &errors.NetworkError{Code: errors.ErrCodeRateLimited, Message: errors.ErrMsgRateLimited},
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(body)
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	var maxAge int
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}

	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")),
		AllowedHeaders: splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
