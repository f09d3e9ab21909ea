// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package aa

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Client pairs a default smart account with a user operation sender.
type Client struct {
	account SmartAccount
	sender  UserOperationSender
}

// NewClient creates a client. account may be nil, in which case every
// operation must name its own account.
func NewClient(sender UserOperationSender, account SmartAccount) *Client {
	return &Client{account: account, sender: sender}
}

// Account returns the default account, or nil.
func (c *Client) Account() SmartAccount {
	return c.account
}

// SendUserOperation sends through the client's sender, using the default
// account when params has none.
func (c *Client) SendUserOperation(ctx context.Context, params *SendUserOperationParameters) (common.Hash, error) {
	p := *params
	if p.Account == nil {
		p.Account = c.account
	}
	if p.Account == nil {
		return common.Hash{}, ErrAccountNotFound
	}
	return c.sender.SendUserOperation(ctx, &p)
}
