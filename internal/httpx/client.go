package httpx

import (
	"crypto/tls"
	"net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/ontahood/drivefetch/internal/config"
	"github.com/ontahood/drivefetch/internal/constants"
)

// NewTransferClient builds an HTTP client tuned for streaming file
// content concurrently.
//
// Key characteristics:
//   - Proxy support (ConfigureHTTPClient as base)
//   - Large connection pool for concurrent workers
//   - HTTP/2 with a runtime toggle (DISABLE_HTTP2 env var)
//   - Disabled compression (previews and media are already compressed)
//   - No overall timeout; each request is bounded by its context
//
// If cfg is nil, proxy settings come from the environment
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func NewTransferClient(cfg *config.Config) (*http.Client, error) {
	var baseClient *http.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient = &http.Client{}
	}

	tr, ok := baseClient.Transport.(*http.Transport)
	if !ok {
		// NTLM mode wraps the transport in a negotiator; the pool tuning
		// was already applied underneath, but HTTP/2 toggles can't be.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 100
	tr.MaxConnsPerHost = 100
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.TLSHandshakeTimeout = constants.HTTPTLSHandshakeTimeout
	tr.ExpectContinueTimeout = constants.HTTPExpectContinueTimeout

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	// Proxies tend to mishandle HTTP/2 multiplexing mid-transfer, so fall
	// back to HTTP/1.1 whenever a proxy is in the path.
	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func proxyActive(cfg *config.Config) bool {
	if cfg == nil {
		return proxyEnvSet()
	}
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return proxyEnvSet()
	default:
		return true
	}
}

func proxyEnvSet() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
