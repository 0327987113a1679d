// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/zeebo/errs"

	"github.com/couchbaselabs/gocbcorex/memdx/scram"
)

// Credentials is a username/password pair, or a bearer token for
// OAUTHBEARER (§4.3).
type Credentials struct {
	Username    string
	Password    string
	BearerToken string
}

func scramHashFunc(mech AuthMechanism) scram.HashFunc {
	switch mech {
	case AuthMechanismScramSha1:
		return sha1.New
	case AuthMechanismScramSha256:
		return sha256.New
	case AuthMechanismScramSha512:
		return sha512.New
	default:
		return nil
	}
}

// authenticateWith runs exactly one mechanism's exchange to completion,
// surfacing a ServerError on rejection.
func authenticateWith(ctx context.Context, d Dispatcher, mech AuthMechanism, creds Credentials) error {
	switch mech {
	case AuthMechanismPlain:
		_, err := SASLAuth(ctx, d, &SASLAuthRequest{
			Mechanism: mech,
			Payload:   PlainAuthPayload(creds.Username, creds.Password),
		})
		return err

	case AuthMechanismOauthBearer:
		_, err := SASLAuth(ctx, d, &SASLAuthRequest{
			Mechanism: mech,
			Payload:   OauthBearerPayload(creds.BearerToken),
		})
		return err

	case AuthMechanismScramSha1, AuthMechanismScramSha256, AuthMechanismScramSha512:
		return authenticateScram(ctx, d, mech, creds)

	default:
		return errs.New("unsupported auth mechanism: %s", mech)
	}
}

func authenticateScram(ctx context.Context, d Dispatcher, mech AuthMechanism, creds Credentials) error {
	client := scram.New(creds.Username, creds.Password, scramHashFunc(mech))

	clientFirst, err := client.Step1()
	if err != nil {
		return &ProtocolError{Message: "scram step1 failed", Cause: err}
	}

	resp, err := SASLAuth(ctx, d, &SASLAuthRequest{Mechanism: mech, Payload: clientFirst})
	if err != nil {
		return err
	}
	if !resp.NeedsMoreSteps {
		return nil
	}

	clientFinal, err := client.Step2(resp.Payload)
	if err != nil {
		return &ProtocolError{Message: "scram step2 failed", Cause: err}
	}

	stepResp, err := SASLStep(ctx, d, &SASLStepRequest{Mechanism: mech, Payload: clientFinal})
	if err != nil {
		return err
	}
	if stepResp.NeedsMoreSteps {
		return &ProtocolError{Message: "server did not accept auth when the client expected"}
	}

	return nil
}

// AuthenticateAuto implements the auto-select authentication algorithm of
// §4.3 step 3: optimistically try the client's top-priority mechanism
// without a prior SASL_LIST_MECHS round-trip; on rejection, only fall
// back to a server-supported mechanism if the server's list genuinely
// doesn't include what was tried (otherwise the rejection is a real
// credential problem and must be surfaced as-is).
func AuthenticateAuto(ctx context.Context, d Dispatcher, creds Credentials) error {
	mech, ok := selectAutoMechanism(nil)
	if !ok {
		return ErrNoSupportedAuthMechanisms
	}

	err := authenticateWith(ctx, d, mech, creds)
	if err == nil {
		return nil
	}
	if IsDispatchError(err) {
		return err
	}

	listResp, listErr := SASLListMechs(ctx, d)
	if listErr != nil {
		// Couldn't even ask what's supported; surface the original
		// failure rather than masking it with a diagnostic error.
		return err
	}

	if _, triedWasSupported := listResp.Mechanisms[mech]; triedWasSupported {
		return err
	}

	fallback, ok := selectAutoMechanism(listResp.Mechanisms)
	if !ok {
		return ErrNoSupportedAuthMechanisms
	}

	return authenticateWith(ctx, d, fallback, creds)
}
