// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.
//
// UserOperation and call types shared by accounts, senders and bundlers.

package aa

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Call is a single call a smart account executes on behalf of a user operation.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// UserOperation is an EntryPoint v0.7 user operation in its unpacked form.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	Factory              *common.Address // nil when the account is deployed
	FactoryData          []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Paymaster                     *common.Address // nil when self-sponsored
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte

	Signature []byte
}

// InitCode returns factory || factoryData, or nil when there is no factory.
func (op *UserOperation) InitCode() []byte {
	if op.Factory == nil {
		return nil
	}
	code := make([]byte, 0, common.AddressLength+len(op.FactoryData))
	code = append(code, op.Factory.Bytes()...)
	return append(code, op.FactoryData...)
}

// PaymasterAndData returns the packed paymaster field of the v0.7 PackedUserOperation:
// paymaster (20) || verificationGasLimit (16) || postOpGasLimit (16) || data.
func (op *UserOperation) PaymasterAndData() []byte {
	if op.Paymaster == nil {
		return nil
	}
	packed := make([]byte, 0, common.AddressLength+32+len(op.PaymasterData))
	packed = append(packed, op.Paymaster.Bytes()...)
	packed = append(packed, packUint128(op.PaymasterVerificationGasLimit)...)
	packed = append(packed, packUint128(op.PaymasterPostOpGasLimit)...)
	return append(packed, op.PaymasterData...)
}

// HasPaymaster returns true if this operation has a paymaster.
func (op *UserOperation) HasPaymaster() bool {
	return op.Paymaster != nil && *op.Paymaster != (common.Address{})
}

// TotalGasLimit returns total gas the operation may consume.
func (op *UserOperation) TotalGasLimit() *big.Int {
	total := new(big.Int)
	for _, v := range []*big.Int{
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.PaymasterVerificationGasLimit,
		op.PaymasterPostOpGasLimit,
	} {
		total.Add(total, safeBig(v))
	}
	return total
}

// Copy returns a deep copy of the operation.
func (op *UserOperation) Copy() *UserOperation {
	cpy := &UserOperation{
		Sender:                        op.Sender,
		Nonce:                         copyBig(op.Nonce),
		FactoryData:                   common.CopyBytes(op.FactoryData),
		CallData:                      common.CopyBytes(op.CallData),
		CallGasLimit:                  copyBig(op.CallGasLimit),
		VerificationGasLimit:          copyBig(op.VerificationGasLimit),
		PreVerificationGas:            copyBig(op.PreVerificationGas),
		MaxFeePerGas:                  copyBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas:          copyBig(op.MaxPriorityFeePerGas),
		PaymasterVerificationGasLimit: copyBig(op.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       copyBig(op.PaymasterPostOpGasLimit),
		PaymasterData:                 common.CopyBytes(op.PaymasterData),
		Signature:                     common.CopyBytes(op.Signature),
	}
	if op.Factory != nil {
		f := *op.Factory
		cpy.Factory = &f
	}
	if op.Paymaster != nil {
		p := *op.Paymaster
		cpy.Paymaster = &p
	}
	return cpy
}

// rpcUserOperation is the bundler JSON-RPC encoding of a UserOperation.
type rpcUserOperation struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory,omitempty"`
	FactoryData                   hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

// MarshalJSON encodes the operation the way bundlers expect it on the wire.
// Unset gas and fee fields are sent as 0x0.
func (op UserOperation) MarshalJSON() ([]byte, error) {
	enc := rpcUserOperation{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(safeBig(op.Nonce)),
		CallData:             hexutil.Bytes(nonNilBytes(op.CallData)),
		CallGasLimit:         (*hexutil.Big)(safeBig(op.CallGasLimit)),
		VerificationGasLimit: (*hexutil.Big)(safeBig(op.VerificationGasLimit)),
		PreVerificationGas:   (*hexutil.Big)(safeBig(op.PreVerificationGas)),
		MaxFeePerGas:         (*hexutil.Big)(safeBig(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(safeBig(op.MaxPriorityFeePerGas)),
		Signature:            hexutil.Bytes(nonNilBytes(op.Signature)),
	}
	if op.Factory != nil {
		enc.Factory = op.Factory
		enc.FactoryData = hexutil.Bytes(nonNilBytes(op.FactoryData))
	}
	if op.Paymaster != nil {
		enc.Paymaster = op.Paymaster
		enc.PaymasterVerificationGasLimit = (*hexutil.Big)(safeBig(op.PaymasterVerificationGasLimit))
		enc.PaymasterPostOpGasLimit = (*hexutil.Big)(safeBig(op.PaymasterPostOpGasLimit))
		enc.PaymasterData = hexutil.Bytes(nonNilBytes(op.PaymasterData))
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON decodes the bundler JSON-RPC encoding.
func (op *UserOperation) UnmarshalJSON(input []byte) error {
	var dec rpcUserOperation
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	*op = UserOperation{
		Sender:                        dec.Sender,
		Nonce:                         (*big.Int)(dec.Nonce),
		Factory:                       dec.Factory,
		FactoryData:                   dec.FactoryData,
		CallData:                      dec.CallData,
		CallGasLimit:                  (*big.Int)(dec.CallGasLimit),
		VerificationGasLimit:          (*big.Int)(dec.VerificationGasLimit),
		PreVerificationGas:            (*big.Int)(dec.PreVerificationGas),
		MaxFeePerGas:                  (*big.Int)(dec.MaxFeePerGas),
		MaxPriorityFeePerGas:          (*big.Int)(dec.MaxPriorityFeePerGas),
		Paymaster:                     dec.Paymaster,
		PaymasterVerificationGasLimit: (*big.Int)(dec.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       (*big.Int)(dec.PaymasterPostOpGasLimit),
		PaymasterData:                 dec.PaymasterData,
		Signature:                     dec.Signature,
	}
	return nil
}

// GasEstimate is the result of eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas            *big.Int
	VerificationGasLimit          *big.Int
	CallGasLimit                  *big.Int
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
}

// UserOpReceipt contains execution results for an included UserOperation.
type UserOpReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	EntryPoint    common.Address `json:"entryPoint"`
	Sender        common.Address `json:"sender"`
	Paymaster     common.Address `json:"paymaster"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Reason        string         `json:"reason,omitempty"` // Revert reason if failed
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

func safeBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
