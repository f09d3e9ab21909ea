// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.
//
// Account is an ERC-7579 smart account owned by a single ECDSA key.

package erc7579

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

// stubSignature is a well-formed ECDSA signature used during gas estimation.
var stubSignature = hexutil.MustDecode("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")

// Account implements aa.SmartAccount for an already deployed ERC-7579 account
// whose validator accepts EIP-191 signatures of the userop hash by owner.
type Account struct {
	address    common.Address
	entryPoint common.Address
	owner      *ecdsa.PrivateKey
	nonceKey   *big.Int
	caller     ethereum.ContractCaller
}

// NewAccount creates an account at address. caller is used to read the
// EntryPoint nonce.
func NewAccount(address common.Address, owner *ecdsa.PrivateKey, caller ethereum.ContractCaller) *Account {
	return &Account{
		address:    address,
		entryPoint: aa.EntryPointV07Address,
		owner:      owner,
		nonceKey:   new(big.Int),
		caller:     caller,
	}
}

// WithEntryPoint overrides the EntryPoint address.
func (a *Account) WithEntryPoint(ep common.Address) *Account {
	a.entryPoint = ep
	return a
}

// WithNonceKey sets the 192-bit nonce key. Some validators encode their own
// address in the key.
func (a *Account) WithNonceKey(key *big.Int) *Account {
	a.nonceKey = new(big.Int).Set(key)
	return a
}

// Address implements aa.SmartAccount.
func (a *Account) Address() common.Address { return a.address }

// EntryPoint implements aa.SmartAccount.
func (a *Account) EntryPoint() common.Address { return a.entryPoint }

// Owner returns the address of the signing key.
func (a *Account) Owner() common.Address {
	return crypto.PubkeyToAddress(a.owner.PublicKey)
}

// EncodeCalls implements aa.SmartAccount.
func (a *Account) EncodeCalls(calls []aa.Call) ([]byte, error) {
	return encodeExecute(calls)
}

// GetNonce implements aa.SmartAccount.
func (a *Account) GetNonce(ctx context.Context) (*big.Int, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no contract caller to read nonce for %s", a.address)
	}
	input, err := entryPointABI.Pack("getNonce", a.address, a.nonceKey)
	if err != nil {
		return nil, err
	}
	out, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.entryPoint, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	res, err := entryPointABI.Unpack("getNonce", out)
	if err != nil {
		return nil, err
	}
	nonce, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getNonce result %T", res[0])
	}
	return nonce, nil
}

// IsModuleInstalled queries the account for m.
func (a *Account) IsModuleInstalled(ctx context.Context, m Module) (bool, error) {
	if a.caller == nil {
		return false, fmt.Errorf("no contract caller for %s", a.address)
	}
	input, err := EncodeIsModuleInstalled(m)
	if err != nil {
		return false, err
	}
	out, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.address, Data: input}, nil)
	if err != nil {
		return false, err
	}
	res, err := accountABI.Unpack("isModuleInstalled", out)
	if err != nil {
		return false, err
	}
	installed, ok := res[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isModuleInstalled result %T", res[0])
	}
	return installed, nil
}

// StubSignature implements aa.SmartAccount.
func (a *Account) StubSignature() []byte {
	return common.CopyBytes(stubSignature)
}

// SignUserOperation implements aa.SmartAccount.
func (a *Account) SignUserOperation(op *aa.UserOperation, chainID *big.Int) ([]byte, error) {
	hash, err := aa.UserOpHash(op, a.entryPoint, chainID)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), a.owner)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced sig over op.
func RecoverSigner(op *aa.UserOperation, entryPoint common.Address, chainID *big.Int, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	hash, err := aa.UserOpHash(op, entryPoint, chainID)
	if err != nil {
		return common.Address{}, err
	}
	rsv := common.CopyBytes(sig)
	if rsv[crypto.RecoveryIDOffset] >= 27 {
		rsv[crypto.RecoveryIDOffset] -= 27
	}
	pubKey, err := crypto.Ecrecover(accounts.TextHash(hash.Bytes()), rsv)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(crypto.Keccak256(pubKey[1:])[12:]), nil
}
