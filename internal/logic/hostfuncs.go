package logic

import (
	"math"
	"slices"

	"github.com/holiman/uint256"

	"github.com/roach88/vmparity/internal/outcome"
)

// ImportModule is the module name every host function is imported from.
const ImportModule = "env"

// HostFunc is a host function exported to guests. All parameters and results
// are i64.
type HostFunc struct {
	Name    string
	Params  int
	Results int

	call func(l *Logic, args []uint64) (uint64, error)
}

var hostFuncs = []*HostFunc{
	{Name: "read_register", Params: 2, call: (*Logic).readRegister},
	{Name: "register_len", Params: 1, Results: 1, call: (*Logic).registerLen},
	{Name: "current_account_id", Params: 1, call: (*Logic).currentAccountID},
	{Name: "signer_account_id", Params: 1, call: (*Logic).signerAccountID},
	{Name: "signer_account_pk", Params: 1, call: (*Logic).signerAccountPK},
	{Name: "predecessor_account_id", Params: 1, call: (*Logic).predecessorAccountID},
	{Name: "input", Params: 1, call: (*Logic).input},
	{Name: "block_index", Results: 1, call: (*Logic).blockIndex},
	{Name: "block_timestamp", Results: 1, call: (*Logic).blockTimestamp},
	{Name: "epoch_height", Results: 1, call: (*Logic).epochHeight},
	{Name: "storage_usage", Results: 1, call: (*Logic).storageUsageFn},
	{Name: "account_balance", Params: 1, call: (*Logic).accountBalance},
	{Name: "account_locked_balance", Params: 1, call: (*Logic).accountLockedBalance},
	{Name: "attached_deposit", Params: 1, call: (*Logic).attachedDeposit},
	{Name: "prepaid_gas", Results: 1, call: (*Logic).prepaidGas},
	{Name: "used_gas", Results: 1, call: (*Logic).usedGas},
	{Name: "random_seed", Params: 1, call: (*Logic).randomSeed},
	{Name: "value_return", Params: 2, call: (*Logic).valueReturn},
	{Name: "panic", call: (*Logic).guestPanic},
	{Name: "panic_utf8", Params: 2, call: (*Logic).panicUTF8},
	{Name: "log_utf8", Params: 2, call: (*Logic).logUTF8},
	{Name: "storage_write", Params: 5, Results: 1, call: (*Logic).storageWrite},
	{Name: "storage_read", Params: 3, Results: 1, call: (*Logic).storageRead},
	{Name: "storage_remove", Params: 3, Results: 1, call: (*Logic).storageRemove},
	{Name: "storage_has_key", Params: 2, Results: 1, call: (*Logic).storageHasKey},
	{Name: "promise_create", Params: 8, Results: 1, call: (*Logic).promiseCreate},
	{Name: "promise_return", Params: 1, call: (*Logic).promiseReturn},
	{Name: "promise_results_count", Results: 1, call: (*Logic).promiseResultsCount},
	{Name: "promise_result", Params: 2, Results: 1, call: (*Logic).promiseResult},
}

// HostFuncs returns every host function in a stable order.
func HostFuncs() []*HostFunc {
	return slices.Clone(hostFuncs)
}

// LookupHostFunc finds a host function by import name.
func LookupHostFunc(name string) (*HostFunc, bool) {
	for _, fn := range hostFuncs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

func (l *Logic) base() error {
	return l.charge(l.costs().Base)
}

func (l *Logic) readRegister(args []uint64) (uint64, error) {
	id, ptr := args[0], args[1]
	if err := l.base(); err != nil {
		return 0, err
	}
	data, ok := l.registers[id]
	if !ok {
		return 0, &HostError{Kind: HostInvalidRegisterID, Index: id}
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.ReadRegisterBase, c.ReadRegisterByte, uint64(len(data))); err != nil {
		return 0, err
	}
	return 0, l.writeMemory(ptr, data)
}

func (l *Logic) registerLen(args []uint64) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	data, ok := l.registers[args[0]]
	if !ok {
		return math.MaxUint64, nil
	}
	return uint64(len(data)), nil
}

func (l *Logic) toRegister(id uint64, data []byte) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	return 0, l.writeRegister(id, data)
}

func (l *Logic) currentAccountID(args []uint64) (uint64, error) {
	return l.toRegister(args[0], []byte(l.ctx.CurrentAccountID))
}

func (l *Logic) signerAccountID(args []uint64) (uint64, error) {
	if err := l.prohibitedInView("signer_account_id"); err != nil {
		return 0, err
	}
	return l.toRegister(args[0], []byte(l.ctx.SignerAccountID))
}

func (l *Logic) signerAccountPK(args []uint64) (uint64, error) {
	if err := l.prohibitedInView("signer_account_pk"); err != nil {
		return 0, err
	}
	return l.toRegister(args[0], l.ctx.SignerAccountPK)
}

func (l *Logic) predecessorAccountID(args []uint64) (uint64, error) {
	if err := l.prohibitedInView("predecessor_account_id"); err != nil {
		return 0, err
	}
	return l.toRegister(args[0], []byte(l.ctx.PredecessorAccountID))
}

func (l *Logic) input(args []uint64) (uint64, error) {
	return l.toRegister(args[0], l.ctx.Input)
}

func (l *Logic) randomSeed(args []uint64) (uint64, error) {
	return l.toRegister(args[0], l.ctx.RandomSeed)
}

func (l *Logic) constant(v uint64) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	return v, nil
}

func (l *Logic) blockIndex([]uint64) (uint64, error) {
	return l.constant(l.ctx.BlockHeight)
}

func (l *Logic) blockTimestamp([]uint64) (uint64, error) {
	return l.constant(l.ctx.BlockTimestamp)
}

func (l *Logic) epochHeight([]uint64) (uint64, error) {
	return l.constant(l.ctx.EpochHeight)
}

func (l *Logic) storageUsageFn([]uint64) (uint64, error) {
	return l.constant(l.storageUsage)
}

func (l *Logic) prepaidGas([]uint64) (uint64, error) {
	if err := l.prohibitedInView("prepaid_gas"); err != nil {
		return 0, err
	}
	return l.constant(l.ctx.PrepaidGas)
}

func (l *Logic) usedGas([]uint64) (uint64, error) {
	if err := l.prohibitedInView("used_gas"); err != nil {
		return 0, err
	}
	if err := l.base(); err != nil {
		return 0, err
	}
	return l.gas.Used(), nil
}

func (l *Logic) balanceTo(ptr uint64, v *uint256.Int) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	return 0, l.writeU128(ptr, v)
}

func (l *Logic) accountBalance(args []uint64) (uint64, error) {
	return l.balanceTo(args[0], l.balance)
}

func (l *Logic) accountLockedBalance(args []uint64) (uint64, error) {
	return l.balanceTo(args[0], cloneInt(l.ctx.AccountLockedBalance))
}

func (l *Logic) attachedDeposit(args []uint64) (uint64, error) {
	if err := l.prohibitedInView("attached_deposit"); err != nil {
		return 0, err
	}
	return l.balanceTo(args[0], cloneInt(l.ctx.AttachedDeposit))
}

func (l *Logic) valueReturn(args []uint64) (uint64, error) {
	n, ptr := args[0], args[1]
	if err := l.base(); err != nil {
		return 0, err
	}
	if n > l.cfg.Limits.MaxLengthReturnedData {
		return 0, hostError(HostReturnedValueLengthExceeded)
	}
	b, err := l.readMemory(ptr, n)
	if err != nil {
		return 0, err
	}
	l.returnData = outcome.ReturnBytes(b)
	return 0, nil
}

func (l *Logic) guestPanic([]uint64) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	return 0, &HostError{Kind: HostGuestPanic, PanicMsg: "explicit guest panic"}
}

func (l *Logic) panicUTF8(args []uint64) (uint64, error) {
	if err := l.base(); err != nil {
		return 0, err
	}
	msg, err := l.readUTF8(args[0], args[1])
	if err != nil {
		return 0, err
	}
	return 0, &HostError{Kind: HostGuestPanic, PanicMsg: msg}
}

func (l *Logic) logUTF8(args []uint64) (uint64, error) {
	n, ptr := args[0], args[1]
	if err := l.base(); err != nil {
		return 0, err
	}
	if uint64(len(l.logs)) >= l.cfg.Limits.MaxNumberLogs {
		return 0, hostError(HostNumberOfLogsExceeded)
	}
	if addSat(l.totalLogLen, n) > l.cfg.Limits.MaxTotalLogLength {
		return 0, hostError(HostTotalLogLengthExceeded)
	}
	msg, err := l.readUTF8(n, ptr)
	if err != nil {
		return 0, err
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.LogBase, c.LogByte, n); err != nil {
		return 0, err
	}
	l.totalLogLen += n
	l.logs = append(l.logs, msg)
	return 0, nil
}

func (l *Logic) readKey(n, ptr uint64) ([]byte, error) {
	if n > l.cfg.Limits.MaxLengthStorageKey {
		return nil, hostError(HostKeyLengthExceeded)
	}
	return l.readMemory(ptr, n)
}

func (l *Logic) storageWrite(args []uint64) (uint64, error) {
	keyLen, keyPtr, valueLen, valuePtr, register := args[0], args[1], args[2], args[3], args[4]
	if err := l.base(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("storage_write"); err != nil {
		return 0, err
	}
	key, err := l.readKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if valueLen > l.cfg.Limits.MaxLengthStorageValue {
		return 0, hostError(HostValueLengthExceeded)
	}
	value, err := l.readMemory(valuePtr, valueLen)
	if err != nil {
		return 0, err
	}
	c := l.costs()
	if err := l.charge(addSat(c.StorageWriteBase, addSat(mulSat(c.StorageWriteKeyByte, keyLen), mulSat(c.StorageWriteValueByte, valueLen)))); err != nil {
		return 0, err
	}

	old, evicted, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, &ExternalError{Op: "storage get", Err: err}
	}
	if err := l.ext.StorageSet(key, value); err != nil {
		return 0, &ExternalError{Op: "storage set", Err: err}
	}
	if !evicted {
		l.storageUsage += keyLen + valueLen + l.fees.NumExtraBytesRecord
		return 0, nil
	}
	l.storageUsage = l.storageUsage - uint64(len(old)) + valueLen
	if err := l.gas.ChargeMul(0, c.StorageWriteEvictedByte, uint64(len(old))); err != nil {
		return 0, err
	}
	if err := l.writeRegister(register, old); err != nil {
		return 0, err
	}
	return 1, nil
}

func (l *Logic) storageRead(args []uint64) (uint64, error) {
	keyLen, keyPtr, register := args[0], args[1], args[2]
	if err := l.base(); err != nil {
		return 0, err
	}
	key, err := l.readKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.StorageReadBase, c.StorageReadKeyByte, keyLen); err != nil {
		return 0, err
	}
	value, ok, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, &ExternalError{Op: "storage get", Err: err}
	}
	if !ok {
		return 0, nil
	}
	if err := l.gas.ChargeMul(0, c.StorageReadValueByte, uint64(len(value))); err != nil {
		return 0, err
	}
	if err := l.writeRegister(register, value); err != nil {
		return 0, err
	}
	return 1, nil
}

func (l *Logic) storageRemove(args []uint64) (uint64, error) {
	keyLen, keyPtr, register := args[0], args[1], args[2]
	if err := l.base(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("storage_remove"); err != nil {
		return 0, err
	}
	key, err := l.readKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.StorageRemoveBase, c.StorageRemoveKeyByte, keyLen); err != nil {
		return 0, err
	}
	old, ok, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, &ExternalError{Op: "storage get", Err: err}
	}
	if !ok {
		return 0, nil
	}
	if err := l.gas.ChargeMul(0, c.StorageRemoveRetValueByte, uint64(len(old))); err != nil {
		return 0, err
	}
	if err := l.ext.StorageRemove(key); err != nil {
		return 0, &ExternalError{Op: "storage remove", Err: err}
	}
	l.storageUsage -= keyLen + uint64(len(old)) + l.fees.NumExtraBytesRecord
	if err := l.writeRegister(register, old); err != nil {
		return 0, err
	}
	return 1, nil
}

func (l *Logic) storageHasKey(args []uint64) (uint64, error) {
	keyLen, keyPtr := args[0], args[1]
	if err := l.base(); err != nil {
		return 0, err
	}
	key, err := l.readKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.StorageHasKeyBase, c.StorageHasKeyByte, keyLen); err != nil {
		return 0, err
	}
	ok, err := l.ext.StorageHasKey(key)
	if err != nil {
		return 0, &ExternalError{Op: "storage has key", Err: err}
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

func (l *Logic) promiseCreate(args []uint64) (uint64, error) {
	accountLen, accountPtr := args[0], args[1]
	methodLen, methodPtr := args[2], args[3]
	argsLen, argsPtr := args[4], args[5]
	amountPtr, gas := args[6], args[7]
	if err := l.base(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_create"); err != nil {
		return 0, err
	}
	account, err := l.readMemory(accountPtr, accountLen)
	if err != nil {
		return 0, err
	}
	method, err := l.readMemory(methodPtr, methodLen)
	if err != nil {
		return 0, err
	}
	callArgs, err := l.readMemory(argsPtr, argsLen)
	if err != nil {
		return 0, err
	}
	amount, err := l.readU128(amountPtr)
	if err != nil {
		return 0, err
	}

	f := l.fees
	perByte := addSat(methodLen, argsLen)
	send := addSat(addSat(f.ActionReceiptCreation.SendNotSir, f.FunctionCallBase.SendNotSir), mulSat(f.FunctionCallPerByte.SendNotSir, perByte))
	exec := addSat(addSat(f.ActionReceiptCreation.Execution, f.FunctionCallBase.Execution), mulSat(f.FunctionCallPerByte.Execution, perByte))
	if err := l.charge(send); err != nil {
		return 0, err
	}
	if err := l.gas.Reserve(addSat(exec, gas)); err != nil {
		return 0, err
	}
	if amount.Gt(l.balance) {
		return 0, hostError(HostBalanceExceeded)
	}
	l.balance = new(uint256.Int).Sub(l.balance, amount)

	receipt, err := l.ext.CreateReceipt(AccountID(account))
	if err != nil {
		return 0, &ExternalError{Op: "create receipt", Err: err}
	}
	if err := l.ext.AppendActionFunctionCall(receipt, string(method), callArgs, amount, gas); err != nil {
		return 0, &ExternalError{Op: "append function call", Err: err}
	}
	l.receipts = append(l.receipts, receipt)
	return uint64(len(l.receipts) - 1), nil
}

func (l *Logic) promiseReturn(args []uint64) (uint64, error) {
	idx := args[0]
	if err := l.base(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_return"); err != nil {
		return 0, err
	}
	if err := l.charge(l.costs().PromiseReturn); err != nil {
		return 0, err
	}
	if idx >= uint64(len(l.receipts)) {
		return 0, &HostError{Kind: HostInvalidPromiseIndex, Index: idx}
	}
	l.returnData = outcome.ReturnReceiptIndex(l.receipts[idx])
	return 0, nil
}

func (l *Logic) promiseResultsCount([]uint64) (uint64, error) {
	if err := l.prohibitedInView("promise_results_count"); err != nil {
		return 0, err
	}
	return l.constant(uint64(len(l.promiseResults)))
}

func (l *Logic) promiseResult(args []uint64) (uint64, error) {
	idx, register := args[0], args[1]
	if err := l.base(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_result"); err != nil {
		return 0, err
	}
	if idx >= uint64(len(l.promiseResults)) {
		return 0, &HostError{Kind: HostInvalidPromiseResultIndex, Index: idx}
	}
	r := l.promiseResults[idx]
	switch r.Status {
	case PromiseSuccessful:
		if err := l.writeRegister(register, r.Data); err != nil {
			return 0, err
		}
		return 1, nil
	case PromiseFailed:
		return 2, nil
	default:
		return 0, nil
	}
}
