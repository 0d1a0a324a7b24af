package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kiosk-llm/relay/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// NewHTTPClient returns an HTTP client for upstream calls, routed through cfg.ProxyURL when set.
// A zero timeout leaves the client unbounded; callers then rely on request contexts.
func NewHTTPClient(cfg *config.SDKConfig, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if cfg == nil || cfg.ProxyURL == "" {
		return client
	}
	return SetProxy(cfg, client)
}

// SetProxy configures the provided HTTP client with proxy settings from the configuration.
// It supports SOCKS5, HTTP, and HTTPS proxies. Unparsable or unsupported proxy URLs leave
// the client unchanged.
func SetProxy(cfg *config.SDKConfig, httpClient *http.Client) *http.Client {
	var transport *http.Transport
	proxyURL, errParse := url.Parse(cfg.ProxyURL)
	if errParse == nil {
		switch proxyURL.Scheme {
		case "socks5":
			var proxyAuth *proxy.Auth
			if proxyURL.User != nil {
				username := proxyURL.User.Username()
				password, _ := proxyURL.User.Password()
				proxyAuth = &proxy.Auth{User: username, Password: password}
			}
			dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
			if errSOCKS5 != nil {
				log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				return httpClient
			}
			transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					if cd, ok := dialer.(proxy.ContextDialer); ok {
						return cd.DialContext(ctx, network, addr)
					}
					return dialer.Dial(network, addr)
				},
			}
		case "http", "https":
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		default:
			log.Warnf("unsupported proxy scheme %q, connecting directly", proxyURL.Scheme)
		}
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
