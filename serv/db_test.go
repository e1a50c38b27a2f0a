package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	conf := &Config{Serv: Serv{AppName: "shop"}}
	cc := Connection{
		URI:            "mongodb://localhost:27017",
		ConnectTimeout: 2 * time.Second,
		MaxPoolSize:    20,
	}

	opts, err := clientOptions(conf, cc, afero.NewMemMapFs())
	require.NoError(t, err)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "shop", *opts.AppName)
	require.NotNil(t, opts.ConnectTimeout)
	assert.Equal(t, 2*time.Second, *opts.ConnectTimeout)
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	assert.Nil(t, opts.TLSConfig)
}

func TestTLSConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := tlsConfig(Connection{EnableTLS: true}, fs)
	assert.ErrorContains(t, err, "server_name is required")

	_, err = tlsConfig(Connection{ServerName: "db"}, fs)
	assert.ErrorContains(t, err, "server_cert is required")

	_, err = tlsConfig(Connection{ServerName: "db", ServerCert: "/certs/missing.pem"}, fs)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/certs/bad.pem", []byte("not a cert"), 0o644))
	_, err = tlsConfig(Connection{ServerName: "db", ServerCert: "/certs/bad.pem"}, fs)
	assert.ErrorContains(t, err, "failed to append pem")
}

func TestReadPEM(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ca.pem", []byte("from file"), 0o644))

	b, err := readPEM(fs, "/ca.pem")
	require.NoError(t, err)
	assert.Equal(t, "from file", string(b))

	b, err = readPEM(fs, `-----BEGIN CERTIFICATE-----\nabc`)
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN CERTIFICATE-----\nabc", string(b))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "mongodb://app:xxxxx@db:27017/shop", redact("mongodb://app:secret@db:27017/shop"))
	assert.Equal(t, "mongodb://db:27017", redact("mongodb://db:27017"))
	assert.Equal(t, "mongodb://app@db", redact("mongodb://app@db"))
}
