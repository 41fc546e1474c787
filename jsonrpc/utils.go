package jsonrpc

import (
	"net"
	"net/http"
	"strings"

	"github.com/mezonai/sequencer/logx"
)

// JSON-RPC Method name constants
const (
	// Transaction methods
	MethodTxSend    = "tx.send"
	MethodTxPending = "tx.pending"
	MethodTxStatus  = "tx.status"
	MethodTxWait    = "tx.wait"

	// Chain methods
	MethodChainSlot  = "chain.slot"
	MethodChainBlock = "chain.block"

	// Health methods
	MethodHealthCheck = "health.check"
)

func extractClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	logx.Debug("JSONRPC", "Unparseable remote address: ", r.RemoteAddr)
	return "unknown"
}
