package validate

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startSSHServer accepts a single user/password pair
func startSSHServer(t *testing.T, user, password string) int {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(key)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sconn, chans, reqs, err := ssh.NewServerConn(c, config)
				if err != nil {
					return
				}
				defer sconn.Close()
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					ch.Reject(ssh.Prohibited, "no channels")
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestSSHValidatorAccepts(t *testing.T) {
	port := startSSHServer(t, "admin", "secret")
	v := NewSSHValidator(port, 2*time.Second)

	ok, err := v.Validate(context.Background(), "127.0.0.1", "admin", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSSHValidatorRejects(t *testing.T) {
	port := startSSHServer(t, "admin", "secret")
	v := NewSSHValidator(port, 2*time.Second)

	ok, err := v.Validate(context.Background(), "127.0.0.1", "admin", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSSHValidatorUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	v := NewSSHValidator(port, time.Second)
	_, err = v.Validate(context.Background(), "127.0.0.1", "admin", "secret")
	require.Error(t, err)
	assert.True(t, utils.IsTransportError(err))
}

func TestParse(t *testing.T) {
	v, err := Parse("ssh", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ssh", v.Name())
	assert.Equal(t, 22, v.(*SSHValidator).Port)

	v, err = Parse("ssh=2222", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2222, v.(*SSHValidator).Port)

	var vErr *interfaces.ValidationError
	_, err = Parse("ssh=abc", time.Second)
	assert.ErrorAs(t, err, &vErr)
	_, err = Parse("telnet", time.Second)
	assert.ErrorAs(t, err, &vErr)
}
