package api

import (
	"encoding/hex"
	"strings"

	"github.com/nimda/routeros-brute/pkg/utils"
)

// ReplyKind classifies a login reply sentence.
type ReplyKind int

const (
	// ReplyUnexpected is any shape the login exchange does not define.
	ReplyUnexpected ReplyKind = iota
	// ReplyPlainSuccess is exactly ["!done"].
	ReplyPlainSuccess
	// ReplyChallenge is the pre-6.43 "=ret=<hex>" challenge.
	ReplyChallenge
	// ReplyTrap is a "!trap" reply, normally "invalid user name or password".
	ReplyTrap
	// ReplyRejected is a "!fatal" reply; the router drops the session.
	ReplyRejected
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyPlainSuccess:
		return "done"
	case ReplyChallenge:
		return "challenge"
	case ReplyTrap:
		return "trap"
	case ReplyRejected:
		return "fatal"
	default:
		return "unexpected"
	}
}

// Reply is a classified login reply. Challenge is set only for ReplyChallenge,
// Message only for ReplyTrap and ReplyRejected.
type Reply struct {
	Kind      ReplyKind
	Words     []string
	Challenge []byte
	Message   string
}

// IsRejection reports whether the router answered with a well-formed refusal.
func (r Reply) IsRejection() bool {
	return r.Kind == ReplyTrap || r.Kind == ReplyRejected
}

// ClassifyReply inspects a reply sentence once so callers switch on Kind
// instead of re-parsing words.
func ClassifyReply(words []string) (Reply, error) {
	reply := Reply{Kind: ReplyUnexpected, Words: words}
	if len(words) == 0 {
		return reply, nil
	}

	if len(words) >= 2 && strings.HasPrefix(words[1], "=ret=") {
		token := strings.TrimPrefix(words[1], "=ret=")
		challenge, err := hex.DecodeString(token)
		if err != nil {
			return reply, utils.NewProtocolError("invalid login challenge", words...)
		}
		reply.Kind = ReplyChallenge
		reply.Challenge = challenge
		return reply, nil
	}

	switch words[0] {
	case "!done":
		if len(words) == 1 {
			reply.Kind = ReplyPlainSuccess
		}
	case "!trap":
		reply.Kind = ReplyTrap
		reply.Message = attribute(words[1:], "message")
	case "!fatal":
		reply.Kind = ReplyRejected
		if len(words) > 1 {
			reply.Message = words[1]
		}
	}
	return reply, nil
}

// attribute returns the value of "=name=value" among words.
func attribute(words []string, name string) string {
	prefix := "=" + name + "="
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return strings.TrimPrefix(w, prefix)
		}
	}
	return ""
}

func containsWord(words []string, want string) bool {
	for _, w := range words {
		if w == want {
			return true
		}
	}
	return false
}
