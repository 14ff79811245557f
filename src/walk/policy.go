package walk

// DefaultToken is the token accepted when no policy is configured.
const DefaultToken = "valid_token"

// TokenPolicy decides whether a hop's authorization token is acceptable.
type TokenPolicy interface {
	Allow(token string) bool
}

// StaticTokenPolicy accepts a fixed set of tokens.
type StaticTokenPolicy struct {
	tokens map[string]struct{}
}

// NewStaticTokenPolicy creates a policy accepting the given tokens, or
// DefaultToken if there are none.
func NewStaticTokenPolicy(tokens ...string) *StaticTokenPolicy {
	if len(tokens) == 0 {
		tokens = []string{DefaultToken}
	}
	p := &StaticTokenPolicy{
		tokens: make(map[string]struct{}, len(tokens)),
	}
	for _, t := range tokens {
		p.tokens[t] = struct{}{}
	}
	return p
}

// Allow implements TokenPolicy.
func (p *StaticTokenPolicy) Allow(token string) bool {
	_, ok := p.tokens[token]
	return ok
}
