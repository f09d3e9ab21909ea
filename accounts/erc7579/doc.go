// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

// Package erc7579 manages modules of ERC-7579 modular smart accounts.
//
// # Module Actions
//
// UninstallModule and InstallModule encode one account call per module and
// send it as a user operation through a Client. The module call always comes
// first, followed by any caller supplied calls in their original order. Fee,
// nonce and paymaster options pass through untouched.
//
// # Accounts
//
// Account is a deployed ERC-7579 account owned by one ECDSA key. It batches
// calls through execute(bytes32,bytes) and reads its nonce from the EntryPoint.
package erc7579
