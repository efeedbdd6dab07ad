package subscriber

import (
	"context"
	"crypto/tls"
	"net"
	"strings"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/pkg/security"
	"github.com/c360/sttp/pkg/tlsutil"
)

// parseConnectionString extracts server=host:port from a semicolon-
// separated key=value connection string (e.g.
// "server=host:port;interface=0.0.0.0"). Unrecognized keys are ignored:
// this module only needs the server address, leaving the rest for a
// future deployment-specific extension.
func parseConnectionString(s string) (string, error) {
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "server") {
			return kv[1], nil
		}
	}
	return "", errors.WrapInvalid(errMissingServer(), "subscriber", "parseConnectionString", "parse")
}

// tlsRequested reports whether cfg carries enough explicit TLS
// configuration to warrant wrapping the command-channel dial in TLS.
// ClientTLSConfig has no standalone Enabled flag, so presence of any of
// its other settings is taken as the operator's intent to use TLS.
func tlsRequested(cfg security.ClientTLSConfig) bool {
	return cfg.Mode == "acme" || cfg.MTLS.Enabled || len(cfg.CAFiles) > 0 || cfg.InsecureSkipVerify || cfg.MinVersion != ""
}

func dialCommandChannel(ctx context.Context, addr string, cfg security.ClientTLSConfig) (net.Conn, func(), error) {
	if !tlsRequested(cfg) {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, errors.WrapTransient(err, "subscriber", "dialCommandChannel", "dial")
		}
		return conn, func() {}, nil
	}

	if cfg.Mode == "acme" {
		tlsConfig, cleanup, err := tlsutil.LoadClientTLSConfigWithACME(ctx, cfg)
		if err != nil {
			return nil, nil, errors.WrapFatal(err, "subscriber", "dialCommandChannel", "acme tls")
		}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			cleanup()
			return nil, nil, errors.WrapTransient(err, "subscriber", "dialCommandChannel", "tls dial")
		}
		return conn, cleanup, nil
	}

	var tlsConfig *tls.Config
	var err error
	if cfg.MTLS.Enabled {
		tlsConfig, err = tlsutil.LoadClientTLSConfigWithMTLS(cfg, cfg.MTLS)
	} else {
		tlsConfig, err = tlsutil.LoadClientTLSConfig(cfg)
	}
	if err != nil {
		return nil, nil, errors.WrapFatal(err, "subscriber", "dialCommandChannel", "static tls")
	}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return nil, nil, errors.WrapTransient(err, "subscriber", "dialCommandChannel", "tls dial")
	}
	return conn, func() {}, nil
}

func errMissingServer() error { return missingServerError{} }

type missingServerError struct{}

func (missingServerError) Error() string { return "connection string has no server=host:port entry" }
