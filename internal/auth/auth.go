// Package auth resolves authenticate payloads into stable player identities.
// Two paths exist: a signed token carrying the account id, and a wallet
// address asserted by the client.
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geoquest/geoquest/internal/protocol"
)

// DefaultUsername is assigned when neither the token nor the client
// supplies a display name.
const DefaultUsername = "Adventurer"

var (
	ErrMissingToken    = errors.New("missing auth token")
	ErrMissingWallet   = errors.New("missing wallet address")
	ErrInvalidWallet   = errors.New("wallet address contains invalid characters")
	ErrMissingSubject  = errors.New("token has no subject claim")
	ErrUnknownAuthType = errors.New("unknown auth type")
)

// walletPattern bounds the client-asserted address to characters safe to use
// in a persistent id, which keys the stored player record.
var walletPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Identity is the durable identity behind a session. PersistentID keys the
// player's stored record across reconnects.
type Identity struct {
	PersistentID string
	Username     string
}

// TokenVerifier checks a bearer token and extracts the identity it carries.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// HMACVerifier verifies HS256-signed tokens. The subject claim is the
// persistent id; an optional name claim carries the display name.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret []byte) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

func (v *HMACVerifier) Verify(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("parsing token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrMissingSubject
	}

	id := Identity{PersistentID: sub}
	if name, ok := claims["name"].(string); ok {
		id.Username = name
	}
	return id, nil
}

// Resolver turns an authenticate payload into an Identity.
type Resolver struct {
	tokens TokenVerifier
}

func NewResolver(tokens TokenVerifier) *Resolver {
	return &Resolver{tokens: tokens}
}

func (r *Resolver) Resolve(p *protocol.AuthenticatePayload) (Identity, error) {
	var id Identity

	switch p.AuthType {
	case protocol.AuthTypeFirebase:
		if p.Token == "" {
			return Identity{}, ErrMissingToken
		}
		var err error
		id, err = r.tokens.Verify(p.Token)
		if err != nil {
			return Identity{}, err
		}

	case protocol.AuthTypeWallet:
		addr := strings.ToLower(strings.TrimSpace(p.WalletAddress))
		if addr == "" {
			return Identity{}, ErrMissingWallet
		}
		if !walletPattern.MatchString(addr) {
			return Identity{}, ErrInvalidWallet
		}
		id = Identity{PersistentID: "wallet-" + addr}

	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrUnknownAuthType, p.AuthType)
	}

	// A name from the token wins over the client's self-asserted one.
	if id.Username == "" {
		id.Username = strings.TrimSpace(p.Username)
	}
	if id.Username == "" {
		id.Username = DefaultUsername
	}
	return id, nil
}
