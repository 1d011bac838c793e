// Package validate re-checks found credentials against other services.
package validate

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// DefaultSSHPort is the RouterOS SSH service port
const DefaultSSHPort = 22

// SSHValidator checks whether a credential also opens an SSH session
type SSHValidator struct {
	Port    int
	Timeout time.Duration
	dialer  net.Dialer
}

// NewSSHValidator creates a validator for the given port (0 means 22)
func NewSSHValidator(port int, timeout time.Duration) *SSHValidator {
	if port == 0 {
		port = DefaultSSHPort
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SSHValidator{Port: port, Timeout: timeout}
}

// Name returns the validator name
func (v *SSHValidator) Name() string {
	return "ssh"
}

// Validate returns true when the router accepts the credential over SSH and
// false when it rejects it. Other failures are returned as errors.
func (v *SSHValidator) Validate(ctx context.Context, host, username, password string) (bool, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(v.Port))
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         v.Timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()
	conn, err := v.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return false, utils.NewConnectionOpError(addr, "dial", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(v.Timeout)); err != nil {
		return false, utils.NewConnectionOpError(addr, "deadline", err)
	}

	client, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if isAuthFailure(err) {
			zlog.Debug().Str("target", addr).Str("username", username).Msg("SSH rejected credentials")
			return false, nil
		}
		return false, utils.NewConnectionOpError(addr, "handshake", err)
	}
	sshClient := ssh.NewClient(client, chans, reqs)
	defer sshClient.Close()

	zlog.Debug().Str("target", addr).Str("username", username).Msg("SSH accepted credentials")
	return true, nil
}

// x/crypto/ssh reports rejected credentials only through the message text
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Parse turns a --validate value into a validator. Accepted forms are
// "ssh", "ssh=<port>" and any registered service name with an optional
// "=<port>", e.g. "webfig" or "rest=8080".
func Parse(spec string, timeout time.Duration) (interfaces.CredentialValidator, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(spec), "=")
	name = strings.ToLower(name)

	port := 0
	if hasArg {
		p, err := strconv.Atoi(arg)
		if err != nil {
			return nil, &interfaces.ValidationError{Field: "validate", Message: fmt.Sprintf("invalid %s port %q", name, arg)}
		}
		if err := interfaces.ValidatePort(p); err != nil {
			return nil, err
		}
		port = p
	}

	if name == "ssh" {
		if port == 0 {
			port = DefaultSSHPort
		}
		return NewSSHValidator(port, timeout), nil
	}
	if info, ok := interfaces.DefaultRegistry.Get(name); ok {
		return NewServiceValidator(info, port, timeout), nil
	}
	return nil, &interfaces.ValidationError{Field: "validate", Message: fmt.Sprintf("unknown validator %q", name)}
}

var _ interfaces.CredentialValidator = (*SSHValidator)(nil)
