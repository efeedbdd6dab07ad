package publisher

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/pkg/security"
	"github.com/c360/sttp/pkg/tlsutil"
)

// bindListener opens the command-channel listener, wrapping it in TLS
// per cfg.TLS.Mode when TLS is enabled: "acme" obtains and renews a
// certificate automatically, anything else loads a static cert/key
// pair. The returned cleanup stops any ACME renewal loop; it is a no-op
// when TLS is disabled or running in manual mode.
func bindListener(ctx context.Context, addr string, cfg security.ServerTLSConfig) (net.Listener, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.WrapFatal(err, "publisher", "bindListener", "listen")
	}

	if !cfg.Enabled {
		return ln, func() {}, nil
	}

	if cfg.Mode == "acme" {
		tlsConfig, cleanup, err := tlsutil.LoadServerTLSConfigWithACME(ctx, cfg)
		if err != nil {
			_ = ln.Close()
			return nil, nil, errors.WrapFatal(err, "publisher", "bindListener", "acme tls")
		}
		return tls.NewListener(ln, tlsConfig), cleanup, nil
	}

	tlsConfig, err := tlsutil.LoadServerTLSConfig(cfg)
	if err != nil {
		_ = ln.Close()
		return nil, nil, errors.WrapFatal(err, "publisher", "bindListener", "static tls")
	}
	return tls.NewListener(ln, tlsConfig), func() {}, nil
}
