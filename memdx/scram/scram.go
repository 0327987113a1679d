// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package scram implements the client side of RFC 5802 SCRAM
// authentication (step1/step2), parameterised over the HMAC/hash pair so
// it serves SCRAM-SHA-1, SCRAM-SHA-256, and SCRAM-SHA-512 alike.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"golang.org/x/crypto/pbkdf2"
)

// ErrorClass roots every error this package returns.
var ErrorClass = errs.Class("scram")

// HashFunc constructs the hash algorithm a Client uses for HMAC and
// PBKDF2 (e.g. sha1.New, sha256.New, sha512.New).
type HashFunc func() hash.Hash

// Client drives one SCRAM exchange's client side. It is single-use: build
// a fresh Client for every authentication attempt.
type Client struct {
	username string
	password string
	hashFn   HashFunc

	clientNonce   string
	clientFirst   string
	serverFirst   string
	saltedPass    []byte
	authMessage   string
}

// New builds a SCRAM client for username/password using hashFn for both
// HMAC and PBKDF2 (so a SHA-512 client uses pbkdf2-hmac-sha512, etc).
func New(username, password string, hashFn HashFunc) *Client {
	return &Client{
		username: username,
		password: password,
		hashFn:   hashFn,
	}
}

// Step1 builds the client-first-message (GS2 header "n,," + bare message,
// §6 "Channel binding is GS2 n,,").
func (c *Client) Step1() ([]byte, error) {
	nonce, err := randomNonce(24)
	if err != nil {
		return nil, ErrorClass.Wrap(err)
	}
	c.clientNonce = nonce

	c.clientFirst = fmt.Sprintf("n=%s,r=%s", escapeSaslName(c.username), c.clientNonce)
	full := "n,," + c.clientFirst
	return []byte(full), nil
}

// Step2 consumes the server-first-message and produces the
// client-final-message (with proof), per RFC 5802 §3.
func (c *Client) Step2(serverFirst []byte) ([]byte, error) {
	c.serverFirst = string(serverFirst)

	fields, err := parseFields(c.serverFirst)
	if err != nil {
		return nil, ErrorClass.Wrap(err)
	}

	serverNonce := fields["r"]
	saltB64 := fields["s"]
	iterStr := fields["i"]

	if serverNonce == "" || saltB64 == "" || iterStr == "" {
		return nil, ErrorClass.New("malformed server-first-message")
	}
	if !strings.HasPrefix(serverNonce, c.clientNonce) {
		return nil, ErrorClass.New("server nonce does not extend client nonce")
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, ErrorClass.Wrap(err)
	}

	iterations, err := strconv.Atoi(iterStr)
	if err != nil {
		return nil, ErrorClass.Wrap(err)
	}

	c.saltedPass = pbkdf2.Key([]byte(c.password), salt, iterations, hashSize(c.hashFn), c.hashFn)

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalNoProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)

	c.authMessage = c.clientFirst + "," + c.serverFirst + "," + clientFinalNoProof

	clientKey := hmacSum(c.hashFn, c.saltedPass, []byte("Client Key"))
	storedKey := hashSum(c.hashFn, clientKey)
	clientSig := hmacSum(c.hashFn, storedKey, []byte(c.authMessage))

	clientProof := xorBytes(clientKey, clientSig)
	proofB64 := base64.StdEncoding.EncodeToString(clientProof)

	final := clientFinalNoProof + ",p=" + proofB64
	return []byte(final), nil
}

// VerifyServerFinal checks the server-final-message's signature against
// what step2 computed, confirming the server also knew the password.
func (c *Client) VerifyServerFinal(serverFinal []byte) error {
	fields, err := parseFields(string(serverFinal))
	if err != nil {
		return ErrorClass.Wrap(err)
	}

	sigB64, ok := fields["v"]
	if !ok {
		return ErrorClass.New("server-final-message missing verifier")
	}
	wantSig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return ErrorClass.Wrap(err)
	}

	serverKey := hmacSum(c.hashFn, c.saltedPass, []byte("Server Key"))
	gotSig := hmacSum(c.hashFn, serverKey, []byte(c.authMessage))

	if !hmac.Equal(gotSig, wantSig) {
		return ErrorClass.New("server signature mismatch")
	}
	return nil
}

func hmacSum(hashFn HashFunc, key, msg []byte) []byte {
	h := hmac.New(hashFn, key)
	h.Write(msg)
	return h.Sum(nil)
}

func hashSum(hashFn HashFunc, msg []byte) []byte {
	h := hashFn()
	h.Write(msg)
	return h.Sum(nil)
}

func hashSize(hashFn HashFunc) int {
	return hashFn().Size()
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func randomNonce(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// escapeSaslName escapes ',' and '=' per RFC 5802 §5.1's saslname rule.
func escapeSaslName(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

// parseFields splits a comma-separated "k=v" SCRAM message into a map.
func parseFields(msg string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, '=')
		if idx < 0 {
			return nil, ErrorClass.New("malformed field: " + part)
		}
		fields[part[:idx]] = part[idx+1:]
	}
	return fields, nil
}
