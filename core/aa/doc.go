// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

/*
Package aa implements the client side of ERC-4337 Account Abstraction.

It provides EntryPoint v0.7 user operations, the smart account abstraction
that encodes and signs them, and a Sender that turns a list of calls into a
submitted user operation.

# Architecture

The system consists of four main components:

 1. SmartAccount - Encodes calls into account calldata, reads the account
    nonce from the EntryPoint and signs the userop hash.

 2. Paymaster - Gas sponsorship selection. Supports the sender's default
    paymaster service, a fixed paymaster address, a required sponsor and
    caller-supplied paymaster actions.

 3. Sender - Prepares, signs and submits user operations through a Bundler.

 4. Client - Pairs a default account with a sender. Higher level actions,
    such as the ERC-7579 module actions, are written against it.

# User Operation Flow

	Action builds []Call
	    → Client fills in the default account
	        → Sender.PrepareUserOperation:
	            1. Encode calls with the account
	            2. Resolve nonce (given or EntryPoint.getNonce)
	            3. Resolve fees (given or FeeEstimator)
	            4. Paymaster stub data, or final data when there is no stub
	            5. eth_estimateUserOperationGas
	            6. Final paymaster data
	        → Account signs the userop hash
	            → eth_sendUserOperation returns the userop hash

# Paymaster Modes

  - Default: Uses the sender's paymaster service when one is configured
  - Address: Fixed paymaster address with empty paymaster data
  - Sponsor: Requires the sender's paymaster service
  - Custom: Caller-supplied PaymasterActions
*/
package aa
