// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

// AuthMechanism identifies a SASL mechanism this client can offer or the
// server can advertise (§4.3).
type AuthMechanism string

const (
	AuthMechanismPlain       AuthMechanism = "PLAIN"
	AuthMechanismScramSha1   AuthMechanism = "SCRAM-SHA1"
	AuthMechanismScramSha256 AuthMechanism = "SCRAM-SHA256"
	AuthMechanismScramSha512 AuthMechanism = "SCRAM-SHA512"
	AuthMechanismOauthBearer AuthMechanism = "OAUTHBEARER"
)

// defaultMechanismPriority is the order auto-negotiation tries mechanisms
// in, most to least preferred, absent any server-advertised list (§4.3).
var defaultMechanismPriority = []AuthMechanism{
	AuthMechanismScramSha512,
	AuthMechanismScramSha256,
	AuthMechanismScramSha1,
	AuthMechanismPlain,
}

// parseMechanismList turns a space-separated SASL_LIST_MECHS response
// body into a set, preserving only mechanisms this client understands.
func parseMechanismList(body []byte) map[AuthMechanism]struct{} {
	out := make(map[AuthMechanism]struct{})
	start := 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || body[i] == ' ' {
			if i > start {
				out[AuthMechanism(body[start:i])] = struct{}{}
			}
			start = i + 1
		}
	}
	return out
}

// selectAutoMechanism picks the best mechanism this client can use,
// optionally restricted to a server-advertised set (nil means "try the
// optimistic top choice without restriction", used before the first
// SASL_LIST_MECHS round-trip per §4.3's auto-negotiation algorithm).
func selectAutoMechanism(serverSupported map[AuthMechanism]struct{}) (AuthMechanism, bool) {
	for _, m := range defaultMechanismPriority {
		if serverSupported == nil {
			return m, true
		}
		if _, ok := serverSupported[m]; ok {
			return m, true
		}
	}
	return "", false
}
