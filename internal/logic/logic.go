package logic

import (
	"fmt"
	"unicode/utf8"

	"github.com/holiman/uint256"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/outcome"
)

// Memory is a guest's linear memory as seen by host functions.
type Memory interface {
	Read(offset, n uint64) ([]byte, bool)
	Write(offset uint64, data []byte) bool
}

// Logic is the host state of one contract execution. It is not safe for
// concurrent use; a Logic serves exactly one run.
type Logic struct {
	cfg            *config.WasmConfig
	fees           *config.Fees
	ctx            Context
	ext            External
	promiseResults []PromiseResult

	gas    *GasCounter
	memory Memory

	registers    map[uint64][]byte
	balance      *uint256.Int
	storageUsage uint64
	returnData   outcome.ReturnData
	logs         []string
	totalLogLen  uint64
	receipts     []uint64

	// hostErr is the first abort raised by a host function. Engines report
	// it wrapped in their own trap errors, so it is kept here as well.
	hostErr error
}

// New prepares host state for one run. ctx is owned by the returned Logic.
func New(cfg *config.WasmConfig, fees *config.Fees, ctx Context, ext External, promiseResults []PromiseResult) *Logic {
	maxBurnt := cfg.Limits.MaxGasBurnt
	if ctx.View != nil {
		maxBurnt = ctx.View.MaxGasBurnt
	}
	return &Logic{
		cfg:            cfg,
		fees:           fees,
		ctx:            ctx,
		ext:            ext,
		promiseResults: promiseResults,
		gas:            newGasCounter(ctx.PrepaidGas, maxBurnt),
		registers:      make(map[uint64][]byte),
		balance:        cloneInt(ctx.AccountBalance),
		storageUsage:   ctx.StorageUsage,
		returnData:     outcome.NoReturn(),
	}
}

// Gas exposes the gas counter.
func (l *Logic) Gas() *GasCounter {
	return l.gas
}

// AttachMemory makes mem the guest memory for host functions.
func (l *Logic) AttachMemory(mem Memory) {
	l.memory = mem
}

// AttachMeter makes m, normally the guest's gas global, the gas meter.
func (l *Logic) AttachMeter(m Meter) {
	l.gas.Attach(m)
}

// HostError returns the first error raised by a host function, if any.
func (l *Logic) HostError() error {
	return l.hostErr
}

// Call dispatches an imported host function by name. The returned error must
// be surfaced to the engine as a trap.
func (l *Logic) Call(fn *HostFunc, args []uint64) (uint64, error) {
	if l.hostErr != nil {
		return 0, l.hostErr
	}
	if len(args) != fn.Params {
		return 0, fmt.Errorf("host function %s: %d arguments, want %d", fn.Name, len(args), fn.Params)
	}
	ret, err := fn.call(l, args)
	if err != nil {
		l.hostErr = err
	}
	return ret, err
}

// Outcome assembles the result of the run. abort is nil for a completed run.
// An aborted run discards its effects: balance and storage usage are reported
// as they were before the call, used gas equals burnt gas and nothing is
// returned.
func (l *Logic) Outcome(abort error) *outcome.Outcome {
	o := &outcome.Outcome{
		Balance:      cloneInt(l.balance),
		StorageUsage: l.storageUsage,
		ReturnData:   l.returnData,
		BurntGas:     l.gas.Burnt(),
		UsedGas:      l.gas.Used(),
		Logs:         append([]string(nil), l.logs...),
	}
	if abort != nil {
		o.Balance = cloneInt(l.ctx.AccountBalance)
		o.StorageUsage = l.ctx.StorageUsage
		o.ReturnData = outcome.NoReturn()
		o.UsedGas = o.BurntGas
		o.Aborted = abort
	}
	return o
}

func (l *Logic) costs() *config.ExtCosts {
	return &l.cfg.ExtCosts
}

func (l *Logic) charge(cost uint64) error {
	return l.gas.Charge(cost)
}

func (l *Logic) readMemory(offset, n uint64) ([]byte, error) {
	c := l.costs()
	if err := l.gas.ChargeMul(c.ReadMemoryBase, c.ReadMemoryByte, n); err != nil {
		return nil, err
	}
	if l.memory == nil {
		return nil, hostError(HostMemoryAccessViolation)
	}
	b, ok := l.memory.Read(offset, n)
	if !ok {
		return nil, hostError(HostMemoryAccessViolation)
	}
	return b, nil
}

func (l *Logic) writeMemory(offset uint64, data []byte) error {
	c := l.costs()
	if err := l.gas.ChargeMul(c.WriteMemoryBase, c.WriteMemoryByte, uint64(len(data))); err != nil {
		return err
	}
	if l.memory == nil || !l.memory.Write(offset, data) {
		return hostError(HostMemoryAccessViolation)
	}
	return nil
}

func (l *Logic) writeRegister(id uint64, data []byte) error {
	c := l.costs()
	if err := l.gas.ChargeMul(c.WriteRegisterBase, c.WriteRegisterByte, uint64(len(data))); err != nil {
		return err
	}
	if uint64(len(data)) > l.cfg.Limits.MaxRegisterSize {
		return hostError(HostRegisterSizeExceeded)
	}
	if _, ok := l.registers[id]; !ok && uint64(len(l.registers)) >= l.cfg.Limits.MaxNumberRegisters {
		return hostError(HostNumberOfRegistersExceeded)
	}
	l.registers[id] = append([]byte{}, data...)
	return nil
}

func (l *Logic) readUTF8(n, ptr uint64) (string, error) {
	if n > l.cfg.Limits.MaxTotalLogLength {
		return "", hostError(HostTotalLogLengthExceeded)
	}
	b, err := l.readMemory(ptr, n)
	if err != nil {
		return "", err
	}
	c := l.costs()
	if err := l.gas.ChargeMul(c.Utf8DecodingBase, c.Utf8DecodingByte, n); err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", hostError(HostBadUTF8)
	}
	return string(b), nil
}

func (l *Logic) readU128(ptr uint64) (*uint256.Int, error) {
	b, err := l.readMemory(ptr, 16)
	if err != nil {
		return nil, err
	}
	return u128FromLE(b), nil
}

func (l *Logic) writeU128(ptr uint64, v *uint256.Int) error {
	return l.writeMemory(ptr, u128ToLE(v))
}

func (l *Logic) prohibitedInView(method string) error {
	if l.ctx.IsView() {
		return &HostError{Kind: HostProhibitedInView, MethodName: method}
	}
	return nil
}

func u128ToLE(v *uint256.Int) []byte {
	be := v.Bytes32()
	out := make([]byte, 16)
	for i := range out {
		out[i] = be[31-i]
	}
	return out
}

func u128FromLE(b []byte) *uint256.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(uint256.Int).SetBytes(be)
}
