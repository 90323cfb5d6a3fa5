package crypto

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MaxVersion)
	assert.Equal(t, "localhost", cfg.CommonName)
}

func TestBuildTLSConfig_AutoCert(t *testing.T) {
	cfg := DefaultTLSConfig()
	cfg.AutoCert = true

	tlsConfig, err := cfg.BuildTLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
}

func TestBuildTLSConfig_NoCert(t *testing.T) {
	cfg := &TLSConfig{}
	_, err := cfg.BuildTLSConfig()
	assert.Error(t, err)
}

func TestWrapListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := DefaultTLSConfig()
	cfg.AutoCert = true

	wrapped, err := cfg.WrapListener(ln)
	require.NoError(t, err)
	defer wrapped.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := wrapped.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := conn.Read(buf); err != nil {
			done <- err
			return
		}
		_, err = conn.Write(buf)
		done <- err
	}()

	client, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
	require.NoError(t, <-done)
}
