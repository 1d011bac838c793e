package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimda/routeros-brute/internal/modules/mikrotik/common"
)

// RouterMode selects how FakeRouter answers /login.
type RouterMode int

const (
	// ModeModern answers plaintext logins with !done or !trap (RouterOS >= 6.43).
	ModeModern RouterMode = iota
	// ModeLegacy answers the first /login with an =ret= challenge.
	ModeLegacy
	// ModeHangup closes every connection without replying.
	ModeHangup
	// ModeSilent accepts connections and never replies.
	ModeSilent
	// ModeGarbage replies with a sentence the login exchange does not define.
	ModeGarbage
)

// FakeRouter is an in-process RouterOS API server on 127.0.0.1.
type FakeRouter struct {
	t         testing.TB
	ln        net.Listener
	mode      RouterMode
	users     map[string]string
	challenge []byte

	mu          sync.Mutex
	connections int
	logins      []string
	wg          sync.WaitGroup
}

// NewFakeRouter starts a server accepting the given user -> password table.
// It is shut down by t.Cleanup.
func NewFakeRouter(t testing.TB, mode RouterMode, users map[string]string) *FakeRouter {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	r := &FakeRouter{
		t:         t,
		ln:        ln,
		mode:      mode,
		users:     users,
		challenge: []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00},
	}

	r.wg.Add(1)
	go r.serve()
	t.Cleanup(r.Close)
	return r
}

// Host returns the listener host.
func (r *FakeRouter) Host() string {
	host, _, _ := net.SplitHostPort(r.ln.Addr().String())
	return host
}

// Port returns the listener port.
func (r *FakeRouter) Port() int {
	_, port, _ := net.SplitHostPort(r.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Challenge returns the legacy challenge bytes the router hands out.
func (r *FakeRouter) Challenge() []byte {
	return r.challenge
}

// Connections returns how many connections were accepted.
func (r *FakeRouter) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections
}

// Logins returns "user:password" for every plaintext login received.
func (r *FakeRouter) Logins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logins))
	copy(out, r.logins)
	return out
}

// Close stops the listener and waits for handlers.
func (r *FakeRouter) Close() {
	_ = r.ln.Close()
	r.wg.Wait()
}

func (r *FakeRouter) serve() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.mu.Lock()
		r.connections++
		r.mu.Unlock()

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer conn.Close()
			r.handle(conn)
		}()
	}
}

func (r *FakeRouter) handle(raw net.Conn) {
	switch r.mode {
	case ModeHangup:
		return
	case ModeSilent:
		buf := make([]byte, 1)
		_ = raw.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, err := raw.Read(buf); err != nil {
				return
			}
		}
	}

	conn := common.NewConn(raw, "fake-router", 5*time.Second, nil)
	for {
		words, err := conn.Receive()
		if err != nil {
			return
		}
		if len(words) == 0 || words[0] != "/login" {
			_ = conn.Send("!trap", "=message=not logged in")
			continue
		}
		if !r.answerLogin(conn, words) {
			return
		}
	}
}

// answerLogin replies to one /login sentence and reports whether the
// connection should stay open.
func (r *FakeRouter) answerLogin(conn *common.Conn, words []string) bool {
	name := attr(words, "name")
	password, hasPassword := lookupAttr(words, "password")
	response, hasResponse := lookupAttr(words, "response")

	if hasPassword {
		r.mu.Lock()
		r.logins = append(r.logins, name+":"+password)
		r.mu.Unlock()
	}

	switch {
	case r.mode == ModeGarbage:
		return conn.Send("!re", "=weird=1") == nil
	case r.mode == ModeLegacy && hasPassword:
		return conn.Send("!done", "=ret="+hex.EncodeToString(r.challenge)) == nil
	case r.mode == ModeLegacy && hasResponse:
		if want, ok := r.users[name]; ok && response == legacyResponse(want, r.challenge) {
			return conn.Send("!done") == nil
		}
		return r.reject(conn)
	case hasPassword:
		if want, ok := r.users[name]; ok && want == password {
			return conn.Send("!done") == nil
		}
		return r.reject(conn)
	default:
		return r.reject(conn)
	}
}

func (r *FakeRouter) reject(conn *common.Conn) bool {
	if err := conn.Send("!trap", "=message=invalid user name or password (6)"); err != nil {
		return false
	}
	return conn.Send("!done") == nil
}

func legacyResponse(password string, challenge []byte) string {
	h := md5.New()
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write(challenge)
	return "00" + hex.EncodeToString(h.Sum(nil))
}

func attr(words []string, name string) string {
	v, _ := lookupAttr(words, name)
	return v
}

func lookupAttr(words []string, name string) (string, bool) {
	prefix := "=" + name + "="
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return strings.TrimPrefix(w, prefix), true
		}
	}
	return "", false
}

// ErrFake is a generic injected failure.
var ErrFake = errors.New("injected failure")
