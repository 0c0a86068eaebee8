package broker

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// sessionAuth is the auth_request payload: the server's long-lived address
// authorizes a freshly generated session key to sign state updates on its
// behalf for the lifetime of the connection, following the broker's
// EIP-712-typed "session key" delegation pattern.
type sessionAuth struct {
	Address     string `json:"address"`
	SessionKey  string `json:"session_key"`
	Custody     string `json:"custody"`
	Adjudicator string `json:"adjudicator"`
	Expires     int64  `json:"expires"`
	Signature   string `json:"signature"`
}

// sessionAuthDomain is the EIP-712 domain the broker verifies authorization
// signatures against.
var sessionAuthDomain = apitypes.TypedDataDomain{
	Name:    "HuntBroker",
	Version: "1",
}

// buildSessionAuth signs an EIP-712 typed-data authorization delegating
// signing authority for the server's custody-held funds to sessionKey,
// using the server's long-lived private key.
func buildSessionAuth(serverKey, sessionKey *ecdsa.PrivateKey, custody, adjudicator string) (*sessionAuth, error) {
	if serverKey == nil {
		return nil, fmt.Errorf("server private key is nil")
	}

	address := crypto.PubkeyToAddress(serverKey.PublicKey)
	sessionAddr := crypto.PubkeyToAddress(sessionKey.PublicKey)
	expires := time.Now().Add(24 * time.Hour).Unix()

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
			},
			"SessionAuthorization": {
				{Name: "wallet", Type: "address"},
				{Name: "sessionKey", Type: "address"},
				{Name: "custody", Type: "address"},
				{Name: "adjudicator", Type: "address"},
				{Name: "expires", Type: "uint256"},
			},
		},
		PrimaryType: "SessionAuthorization",
		Domain:      sessionAuthDomain,
		Message: apitypes.TypedDataMessage{
			"wallet":      address.Hex(),
			"sessionKey":  sessionAddr.Hex(),
			"custody":     custody,
			"adjudicator": adjudicator,
			"expires":     big.NewInt(expires).String(),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, serverKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	// crypto.Sign returns v in {0,1}; the broker, like most EIP-712
	// verifiers, expects the Ethereum-convention v in {27,28}.
	sig[64] += 27

	return &sessionAuth{
		Address:     address.Hex(),
		SessionKey:  sessionAddr.Hex(),
		Custody:     common.HexToAddress(custody).Hex(),
		Adjudicator: common.HexToAddress(adjudicator).Hex(),
		Expires:     expires,
		Signature:   "0x" + common.Bytes2Hex(sig),
	}, nil
}
