// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package aa

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)
	bytes32T, _ = abi.NewType("bytes32", "", nil)

	// sender, nonce, hashInitCode, hashCallData, accountGasLimits,
	// preVerificationGas, gasFees, hashPaymasterAndData
	packedUserOpArgs = abi.Arguments{
		{Type: addressT}, {Type: uint256T}, {Type: bytes32T}, {Type: bytes32T},
		{Type: bytes32T}, {Type: uint256T}, {Type: bytes32T}, {Type: bytes32T},
	}
	userOpHashArgs = abi.Arguments{{Type: bytes32T}, {Type: addressT}, {Type: uint256T}}
)

// UserOpHash computes the EntryPoint v0.7 hash of a UserOperation, which is
// what the account signs.
func UserOpHash(op *UserOperation, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	if op == nil {
		return common.Hash{}, ErrInvalidUserOp
	}
	packed, err := packedUserOpArgs.Pack(
		op.Sender,
		safeBig(op.Nonce),
		crypto.Keccak256Hash(op.InitCode()),
		crypto.Keccak256Hash(op.CallData),
		packUint128Pair(op.VerificationGasLimit, op.CallGasLimit),
		safeBig(op.PreVerificationGas),
		packUint128Pair(op.MaxPriorityFeePerGas, op.MaxFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData()),
	)
	if err != nil {
		return common.Hash{}, err
	}
	enc, err := userOpHashArgs.Pack(crypto.Keccak256Hash(packed), entryPoint, safeBig(chainID))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// packUint128 returns v as a 16 byte big-endian value. Values wider than
// 128 bits are truncated, the same as the on-chain packing.
func packUint128(v *big.Int) []byte {
	word, _ := uint256.FromBig(safeBig(v))
	b := word.Bytes32()
	return b[16:]
}

// packUint128Pair packs hi || lo into a single word.
func packUint128Pair(hi, lo *big.Int) [32]byte {
	var out [32]byte
	copy(out[:16], packUint128(hi))
	copy(out[16:], packUint128(lo))
	return out
}
