package interfaces

import "context"

// Outcome is the result class of a single login attempt.
type Outcome int

const (
	// OutcomeError means the attempt did not reach a verdict (transport or protocol fault).
	OutcomeError Outcome = iota
	// OutcomeFailure means the router answered and rejected the credential.
	OutcomeFailure
	// OutcomeSuccess means the router accepted the credential.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "error"
	}
}

// LoginClient performs one login attempt against one service of a target.
// Implementations open and close their own connection per call and must be
// safe for concurrent use.
type LoginClient interface {
	// Login returns OutcomeSuccess or OutcomeFailure with a nil error, or
	// OutcomeError with the transport/protocol fault.
	Login(ctx context.Context, username, password string) (Outcome, error)

	// Service returns the service name (e.g. "api", "api-ssl", "rest")
	Service() string

	// Target returns the address being tested
	Target() string
}

// ClientFactory creates login clients for one service.
// The engine asks each factory for a client per worker, so fakes can be
// substituted in tests without touching the network.
type ClientFactory interface {
	// CreateClient creates a new login client
	CreateClient() (LoginClient, error)

	// Service returns the name of the service this factory creates clients for
	Service() string
}

// CredentialValidator re-checks a found credential against another service.
type CredentialValidator interface {
	Name() string
	Validate(ctx context.Context, host, username, password string) (bool, error)
}
