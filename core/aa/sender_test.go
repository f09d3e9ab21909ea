// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package aa

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// mockAccount implements SmartAccount for testing.
type mockAccount struct {
	address common.Address
	nonce   *big.Int
	signed  []*UserOperation
	encoded [][]Call
}

func newMockAccount() *mockAccount {
	return &mockAccount{
		address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		nonce:   big.NewInt(7),
	}
}

func (m *mockAccount) Address() common.Address    { return m.address }
func (m *mockAccount) EntryPoint() common.Address { return EntryPointV07Address }
func (m *mockAccount) StubSignature() []byte      { return []byte{0xff, 0xff} }

func (m *mockAccount) EncodeCalls(calls []Call) ([]byte, error) {
	m.encoded = append(m.encoded, calls)
	out := make([]byte, 0)
	for _, c := range calls {
		out = append(out, c.Data...)
	}
	return out, nil
}

func (m *mockAccount) GetNonce(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.nonce), nil
}

func (m *mockAccount) SignUserOperation(op *UserOperation, chainID *big.Int) ([]byte, error) {
	m.signed = append(m.signed, op.Copy())
	return []byte{0x5a}, nil
}

// mockBundler implements Bundler for testing.
type mockBundler struct {
	estimate  *GasEstimate
	estimated []*UserOperation
	sent      []*UserOperation
	sendErr   error
}

func newMockBundler() *mockBundler {
	return &mockBundler{
		estimate: &GasEstimate{
			PreVerificationGas:            big.NewInt(21000),
			VerificationGasLimit:          big.NewInt(30000),
			CallGasLimit:                  big.NewInt(50000),
			PaymasterVerificationGasLimit: big.NewInt(40000),
			PaymasterPostOpGasLimit:       big.NewInt(10000),
		},
	}
}

func (m *mockBundler) EstimateUserOperationGas(ctx context.Context, op *UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	m.estimated = append(m.estimated, op.Copy())
	return m.estimate, nil
}

func (m *mockBundler) SendUserOperation(ctx context.Context, op *UserOperation, entryPoint common.Address) (common.Hash, error) {
	if m.sendErr != nil {
		return common.Hash{}, m.sendErr
	}
	m.sent = append(m.sent, op.Copy())
	return common.HexToHash("0xabcd"), nil
}

type mockFees struct {
	calls int
}

func (m *mockFees) EstimateFeesPerGas(ctx context.Context) (*big.Int, *big.Int, error) {
	m.calls++
	return big.NewInt(2e9), big.NewInt(1e8), nil
}

func testCalls() []Call {
	return []Call{{
		To:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value: big.NewInt(0),
		Data:  []byte{0x01, 0x02},
	}}
}

func TestSenderSendsSignedOperation(t *testing.T) {
	account := newMockAccount()
	bundler := newMockBundler()
	s := NewSender(bundler, big.NewInt(1719))

	hash, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              account,
		Calls:                testCalls(),
		MaxFeePerGas:         big.NewInt(1e9),
		MaxPriorityFeePerGas: big.NewInt(1e8),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	if hash != common.HexToHash("0xabcd") {
		t.Fatalf("unexpected hash: %s", hash)
	}
	if len(bundler.sent) != 1 {
		t.Fatalf("expected 1 sent op, got %d", len(bundler.sent))
	}
	op := bundler.sent[0]
	if op.Sender != account.address {
		t.Errorf("wrong sender: %s", op.Sender)
	}
	if op.Nonce.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("expected account nonce 7, got %s", op.Nonce)
	}
	if op.CallGasLimit.Cmp(big.NewInt(50000)) != 0 {
		t.Errorf("call gas not applied: %s", op.CallGasLimit)
	}
	if op.HasPaymaster() {
		t.Errorf("unexpected paymaster")
	}
	if op.PaymasterVerificationGasLimit != nil {
		t.Errorf("paymaster gas must not be set without paymaster")
	}
	if string(op.Signature) != string([]byte{0x5a}) {
		t.Errorf("operation not signed: %x", op.Signature)
	}
	// Estimation happens with the stub signature
	if string(bundler.estimated[0].Signature) != string([]byte{0xff, 0xff}) {
		t.Errorf("estimation should use stub signature, got %x", bundler.estimated[0].Signature)
	}
}

func TestSenderUsesGivenNonce(t *testing.T) {
	bundler := newMockBundler()
	s := NewSender(bundler, big.NewInt(1))

	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		Nonce:                big.NewInt(42),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	if got := bundler.sent[0].Nonce; got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected nonce 42, got %s", got)
	}
}

func TestSenderFillsMissingFees(t *testing.T) {
	bundler := newMockBundler()
	fees := &mockFees{}
	s := NewSender(bundler, big.NewInt(1)).WithFeeEstimator(fees)

	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:      newMockAccount(),
		Calls:        testCalls(),
		MaxFeePerGas: big.NewInt(5e9),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	op := bundler.sent[0]
	if op.MaxFeePerGas.Cmp(big.NewInt(5e9)) != 0 {
		t.Errorf("given maxFeePerGas overwritten: %s", op.MaxFeePerGas)
	}
	if op.MaxPriorityFeePerGas.Cmp(big.NewInt(1e8)) != 0 {
		t.Errorf("estimated maxPriorityFeePerGas not applied: %s", op.MaxPriorityFeePerGas)
	}
	if fees.calls != 1 {
		t.Errorf("expected 1 fee estimate, got %d", fees.calls)
	}
}

func TestSenderMissingFeesWithoutEstimator(t *testing.T) {
	s := NewSender(newMockBundler(), big.NewInt(1))
	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account: newMockAccount(),
		Calls:   testCalls(),
	})
	if !errors.Is(err, ErrInvalidUserOp) {
		t.Fatalf("expected ErrInvalidUserOp, got %v", err)
	}
}

func TestSenderRejectsMissingAccountAndCalls(t *testing.T) {
	s := NewSender(newMockBundler(), big.NewInt(1))
	if _, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{Calls: testCalls()}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{Account: newMockAccount()}); !errors.Is(err, ErrNoCalls) {
		t.Errorf("expected ErrNoCalls, got %v", err)
	}
}

func TestSenderPaymasterStubThenData(t *testing.T) {
	pmAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	var stubCalls, dataCalls int
	var gotContext any
	actions := PaymasterFuncs{
		StubData: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			stubCalls++
			gotContext = req.Context
			return &PaymasterData{
				Paymaster:                     pmAddr,
				PaymasterData:                 []byte{0x00},
				PaymasterVerificationGasLimit: big.NewInt(99999),
			}, nil
		},
		Data: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			dataCalls++
			return &PaymasterData{Paymaster: pmAddr, PaymasterData: []byte{0xbe, 0xef}}, nil
		},
	}
	bundler := newMockBundler()
	s := NewSender(bundler, big.NewInt(1))

	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		Paymaster:            CustomPaymaster(actions),
		PaymasterContext:     map[string]string{"policyId": "p1"},
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	if stubCalls != 1 || dataCalls != 1 {
		t.Fatalf("expected one stub and one data call, got %d/%d", stubCalls, dataCalls)
	}
	if m, ok := gotContext.(map[string]string); !ok || m["policyId"] != "p1" {
		t.Errorf("paymaster context not forwarded: %v", gotContext)
	}
	if *bundler.estimated[0].Paymaster != pmAddr {
		t.Errorf("estimation should see stub paymaster")
	}
	op := bundler.sent[0]
	if string(op.PaymasterData) != string([]byte{0xbe, 0xef}) {
		t.Errorf("final paymaster data not applied: %x", op.PaymasterData)
	}
	if op.PaymasterVerificationGasLimit.Cmp(big.NewInt(99999)) != 0 {
		t.Errorf("stub paymaster gas limit overwritten: %s", op.PaymasterVerificationGasLimit)
	}
	if op.PaymasterPostOpGasLimit.Cmp(big.NewInt(10000)) != 0 {
		t.Errorf("estimated postOp gas limit not applied: %s", op.PaymasterPostOpGasLimit)
	}
}

func TestSenderPaymasterFinalStubSkipsData(t *testing.T) {
	var dataCalls int
	actions := PaymasterFuncs{
		StubData: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			return &PaymasterData{Paymaster: common.HexToAddress("0x33"), IsFinal: true}, nil
		},
		Data: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			dataCalls++
			return nil, nil
		},
	}
	s := NewSender(newMockBundler(), big.NewInt(1)).WithPaymaster(actions)
	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	if dataCalls != 0 {
		t.Errorf("final stub data should skip GetPaymasterData")
	}
}

func TestSenderSponsorRequiresService(t *testing.T) {
	s := NewSender(newMockBundler(), big.NewInt(1))
	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		Paymaster:            SponsoredPaymaster(),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if !errors.Is(err, ErrNoPaymasterService) {
		t.Fatalf("expected ErrNoPaymasterService, got %v", err)
	}
}

func TestSenderPropagatesBundlerError(t *testing.T) {
	bundler := newMockBundler()
	bundler.sendErr = errors.New("AA25 invalid account nonce")
	s := NewSender(bundler, big.NewInt(1))
	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if !errors.Is(err, bundler.sendErr) {
		t.Fatalf("expected wrapped bundler error, got %v", err)
	}
}

func TestSenderPaymasterDataOnly(t *testing.T) {
	pmAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	var dataCalls int
	actions := PaymasterFuncs{
		Data: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			dataCalls++
			return &PaymasterData{Paymaster: pmAddr, PaymasterData: []byte{0xbe, 0xef}}, nil
		},
	}
	bundler := newMockBundler()
	s := NewSender(bundler, big.NewInt(1))

	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		Paymaster:            CustomPaymaster(actions),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	if dataCalls != 1 {
		t.Fatalf("expected exactly one data call, got %d", dataCalls)
	}
	if est := bundler.estimated[0]; est.Paymaster == nil || *est.Paymaster != pmAddr {
		t.Fatalf("estimation should see the paymaster, got %v", est.Paymaster)
	}
	op := bundler.sent[0]
	if op.Paymaster == nil || *op.Paymaster != pmAddr || string(op.PaymasterData) != string([]byte{0xbe, 0xef}) {
		t.Errorf("paymaster data not applied: %v %x", op.Paymaster, op.PaymasterData)
	}
	if op.PaymasterVerificationGasLimit == nil || op.PaymasterVerificationGasLimit.Cmp(big.NewInt(40000)) != 0 {
		t.Errorf("estimated paymaster verification gas not applied: %v", op.PaymasterVerificationGasLimit)
	}
	if op.PaymasterPostOpGasLimit == nil || op.PaymasterPostOpGasLimit.Cmp(big.NewInt(10000)) != 0 {
		t.Errorf("estimated postOp gas not applied: %v", op.PaymasterPostOpGasLimit)
	}
}

func TestSenderPaymasterStubOnly(t *testing.T) {
	pmAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	actions := PaymasterFuncs{
		StubData: func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
			return &PaymasterData{Paymaster: pmAddr, PaymasterData: []byte{0x01}}, nil
		},
	}
	bundler := newMockBundler()
	s := NewSender(bundler, big.NewInt(1))

	_, err := s.SendUserOperation(context.Background(), &SendUserOperationParameters{
		Account:              newMockAccount(),
		Calls:                testCalls(),
		Paymaster:            CustomPaymaster(actions),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendUserOperation failed: %v", err)
	}
	op := bundler.sent[0]
	if op.Paymaster == nil || *op.Paymaster != pmAddr || string(op.PaymasterData) != string([]byte{0x01}) {
		t.Errorf("stub paymaster fields must be kept: %v %x", op.Paymaster, op.PaymasterData)
	}
	if op.PaymasterVerificationGasLimit == nil || op.PaymasterPostOpGasLimit == nil {
		t.Errorf("paymaster gas limits must be set: %v %v", op.PaymasterVerificationGasLimit, op.PaymasterPostOpGasLimit)
	}
}
