package seedsync

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// newHTTPClient returns a client whose requests time out after timeout. With
// proxyAddr set, connections go through that HTTP or SOCKS5 proxy.
func newHTTPClient(timeout time.Duration, proxyAddr string) (*http.Client,
	error) {

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	if proxyAddr != "" {
		u, err := url.Parse(proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxyAddr,
				err)
		}

		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)

		case "socks5", "socks5h":
			var auth *proxy.Auth
			if u.User != nil {
				password, _ := u.User.Password()
				auth = &proxy.Auth{
					User:     u.User.Username(),
					Password: password,
				}
			}

			dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("unable to create socks "+
					"dialer: %w", err)
			}

			ctxDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks dialer doesn't " +
					"support contexts")
			}
			transport.DialContext = ctxDialer.DialContext

		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q",
				u.Scheme)
		}

		log.Debugf("Fetching published caches through %s proxy %s",
			u.Scheme, u.Host)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
