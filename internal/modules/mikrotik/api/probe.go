package api

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

const maxProbeSentences = 8

// ProbeResult is the raw transcript of one plaintext /login
type ProbeResult struct {
	Address   string
	Sentences [][]string
	// First is the classification of the first non-empty reply
	First   ReplyKind
	Legacy  bool
	Elapsed time.Duration
}

// Probe sends a single plaintext /login and records every reply sentence up
// to the terminating !done or !fatal. A legacy challenge is recorded but not
// answered, so the probe never completes a pre-6.43 login.
func (c *Client) Probe(ctx context.Context, username, password string) (*ProbeResult, error) {
	start := time.Now()
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			zlog.Trace().Err(err).Str("target", c.target).Msg("Error closing probe connection")
		}
	}()

	if err := conn.Send("/login", "=name="+username, "=password="+password); err != nil {
		return nil, err
	}

	res := &ProbeResult{Address: c.Address(), First: ReplyUnexpected}
	for len(res.Sentences) < maxProbeSentences {
		words, err := conn.Receive()
		if err != nil {
			if len(res.Sentences) > 0 {
				break
			}
			return nil, err
		}
		if len(words) == 0 {
			continue
		}
		res.Sentences = append(res.Sentences, words)

		if len(res.Sentences) == 1 {
			if reply, err := ClassifyReply(words); err == nil {
				res.First = reply.Kind
				res.Legacy = reply.Kind == ReplyChallenge
			}
		}
		if words[0] == "!done" || words[0] == "!fatal" {
			break
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
