package logic

import (
	"slices"

	"github.com/holiman/uint256"
)

// AccountID names an account.
type AccountID string

// ViewConfig marks a call as a read-only view.
type ViewConfig struct {
	MaxGasBurnt uint64
}

// DataReceiver is an output data dependency of the current receipt.
type DataReceiver struct {
	DataID     []byte
	ReceiverID AccountID
}

// Context is the environment a method executes in.
type Context struct {
	CurrentAccountID     AccountID
	SignerAccountID      AccountID
	SignerAccountPK      []byte
	PredecessorAccountID AccountID
	Input                []byte

	BlockHeight    uint64
	BlockTimestamp uint64
	EpochHeight    uint64

	AccountBalance       *uint256.Int
	AccountLockedBalance *uint256.Int
	StorageUsage         uint64
	AttachedDeposit      *uint256.Int
	PrepaidGas           uint64
	RandomSeed           []byte

	// View is nil unless the call is a view call.
	View                *ViewConfig
	OutputDataReceivers []DataReceiver
}

// Clone returns a deep copy; the clone shares no mutable state with c.
func (c Context) Clone() Context {
	out := c
	out.SignerAccountPK = slices.Clone(c.SignerAccountPK)
	out.Input = slices.Clone(c.Input)
	out.RandomSeed = slices.Clone(c.RandomSeed)
	out.AccountBalance = cloneInt(c.AccountBalance)
	out.AccountLockedBalance = cloneInt(c.AccountLockedBalance)
	out.AttachedDeposit = cloneInt(c.AttachedDeposit)
	if c.View != nil {
		v := *c.View
		out.View = &v
	}
	if c.OutputDataReceivers != nil {
		out.OutputDataReceivers = make([]DataReceiver, len(c.OutputDataReceivers))
		for i, r := range c.OutputDataReceivers {
			out.OutputDataReceivers[i] = DataReceiver{DataID: slices.Clone(r.DataID), ReceiverID: r.ReceiverID}
		}
	}
	return out
}

// IsView reports whether the call is a view call.
func (c *Context) IsView() bool {
	return c.View != nil
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
