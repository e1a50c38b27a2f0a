package serv

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/dosco/docorm/core"
	"github.com/dosco/docorm/mongodriver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	pemSig = "--BEGIN "

	defaultPingTimeout = 5 * time.Second
)

// NewPool connects every configured connection and waits until each one
// answers a ping. Certificate paths are resolved on fs.
func NewPool(ctx context.Context, conf *Config, log *zap.SugaredLogger, fs afero.Fs) (*mongodriver.Pool, error) {
	pool := mongodriver.NewPool()

	for _, name := range conf.ConnectionNames() {
		cc := conf.Connections[name]

		opts, err := clientOptions(conf, cc, fs)
		if err != nil {
			pool.Close(ctx) //nolint:errcheck
			return nil, errors.Wrapf(err, "connection %s", name)
		}

		conn, err := mongodriver.Dial(name, cc.URI, cc.Database, opts)
		if err != nil {
			pool.Close(ctx) //nolint:errcheck
			return nil, errors.Wrapf(err, "connection %s", name)
		}
		pool.Add(conn)

		if err := ping(ctx, conn, cc, conf.ConnectRetries, log); err != nil {
			pool.Close(ctx) //nolint:errcheck
			return nil, errors.Wrapf(err, "connection %s", name)
		}
		log.Infof("connected to %s (%s)", name, redact(cc.URI))
	}
	return pool, nil
}

// NewDB creates the query builder on top of pool
func NewDB(conf *Config, pool *mongodriver.Pool, log *zap.Logger) (*core.DB, error) {
	return core.New(&conf.Core, pool, core.OptionSetLogger(log))
}

func ping(ctx context.Context, conn *mongodriver.Conn, cc Connection, attempts uint, log *zap.SugaredLogger) error {
	timeout := cc.PingTimeout
	if timeout == 0 {
		timeout = defaultPingTimeout
	}
	if attempts == 0 {
		attempts = 1
	}

	return retry.Do(
		func() error {
			c, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return conn.Ping(c)
		},
		retry.Attempts(attempts),
		retry.Context(ctx),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("database ping: %s", err)
		}),
	)
}

func clientOptions(conf *Config, cc Connection, fs afero.Fs) (*options.ClientOptions, error) {
	opts := options.Client()

	if conf.AppName != "" {
		opts.SetAppName(conf.AppName)
	}
	if cc.ConnectTimeout != 0 {
		opts.SetConnectTimeout(cc.ConnectTimeout)
	}
	if cc.MaxPoolSize != 0 {
		opts.SetMaxPoolSize(cc.MaxPoolSize)
	}

	if cc.EnableTLS {
		tc, err := tlsConfig(cc, fs)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}
	return opts, nil
}

func tlsConfig(cc Connection, fs afero.Fs) (*tls.Config, error) {
	if len(cc.ServerName) == 0 {
		return nil, errors.New("tls: server_name is required")
	}
	if len(cc.ServerCert) == 0 {
		return nil, errors.New("tls: server_cert is required")
	}

	pem, err := readPEM(fs, cc.ServerCert)
	if err != nil {
		return nil, errors.Wrap(err, "tls")
	}

	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return nil, errors.New("tls: failed to append pem")
	}

	tc := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCertPool,
		ServerName: cc.ServerName,
	}

	if len(cc.ClientCert) > 0 {
		if len(cc.ClientKey) == 0 {
			return nil, errors.New("tls: client_key is required")
		}
		certPEM, err := readPEM(fs, cc.ClientCert)
		if err != nil {
			return nil, errors.Wrap(err, "tls")
		}
		keyPEM, err := readPEM(fs, cc.ClientKey)
		if err != nil {
			return nil, errors.Wrap(err, "tls")
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, errors.Wrap(err, "tls")
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// readPEM returns v itself when it holds PEM data, otherwise the
// contents of the file named v.
func readPEM(fs afero.Fs, v string) ([]byte, error) {
	if strings.Contains(v, pemSig) {
		return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
	}
	return afero.ReadFile(fs, v)
}

// redact hides the password of a connection string for logging
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return uri
	}
	if user, _, hasPass := strings.Cut(creds, ":"); hasPass {
		return scheme + "://" + user + ":xxxxx@" + host
	}
	return uri
}
