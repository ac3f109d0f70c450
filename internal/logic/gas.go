package logic

import "math"

// GasExhausted is the value a wasm-side meter holds after it trapped on an
// insufficient budget.
const GasExhausted = math.MaxUint64

// Meter stores the remaining burnable gas. Before instantiation a Logic uses
// an in-process meter; backends replace it with the module's gas global.
type Meter interface {
	Remaining() uint64
	SetRemaining(uint64)
}

type localMeter struct {
	remaining uint64
}

func (m *localMeter) Remaining() uint64     { return m.remaining }
func (m *localMeter) SetRemaining(v uint64) { m.remaining = v }

// GasCounter tracks burnt gas and gas reserved for created promises.
//
// The meter holds limit() - burnt, where limit() is the smaller of the burn
// cap and the prepaid gas not reserved for promises.
type GasCounter struct {
	meter      Meter
	burntCap   uint64
	prepaid    uint64
	promiseGas uint64
}

func newGasCounter(prepaid, maxGasBurnt uint64) *GasCounter {
	g := &GasCounter{burntCap: min(prepaid, maxGasBurnt), prepaid: prepaid}
	g.meter = &localMeter{remaining: g.limit()}
	return g
}

func (g *GasCounter) limit() uint64 {
	return min(g.burntCap, g.prepaid-g.promiseGas)
}

func (g *GasCounter) remaining() uint64 {
	r := g.meter.Remaining()
	if r == GasExhausted {
		return 0
	}
	return r
}

// Burnt is the gas burnt so far.
func (g *GasCounter) Burnt() uint64 {
	return g.limit() - min(g.remaining(), g.limit())
}

// Used is burnt gas plus gas reserved for promises.
func (g *GasCounter) Used() uint64 {
	return g.Burnt() + g.promiseGas
}

// Exhausted reports whether the wasm-side meter trapped on its budget.
func (g *GasCounter) Exhausted() bool {
	return g.meter.Remaining() == GasExhausted
}

// Attach moves the remaining budget to m and makes m the meter.
func (g *GasCounter) Attach(m Meter) {
	m.SetRemaining(g.remaining())
	g.meter = m
}

// Charge burns cost gas, or burns everything left and fails.
func (g *GasCounter) Charge(cost uint64) error {
	r := g.remaining()
	if cost > r {
		g.meter.SetRemaining(0)
		return g.exceeded()
	}
	g.meter.SetRemaining(r - cost)
	return nil
}

// ChargeMul charges base + per*n, saturating on overflow.
func (g *GasCounter) ChargeMul(base, per, n uint64) error {
	return g.Charge(addSat(base, mulSat(per, n)))
}

// Reserve sets gas aside for a promise without burning it.
func (g *GasCounter) Reserve(gas uint64) error {
	burnt := g.Burnt()
	if gas > g.prepaid-g.promiseGas-burnt {
		g.meter.SetRemaining(0)
		return hostError(HostGasExceeded)
	}
	g.promiseGas += gas
	g.meter.SetRemaining(g.limit() - min(burnt, g.limit()))
	return nil
}

// Exceeded drains the meter and returns the abort for an exhausted budget.
func (g *GasCounter) Exceeded() *HostError {
	g.meter.SetRemaining(0)
	return g.exceeded()
}

func (g *GasCounter) exceeded() *HostError {
	if g.burntCap < g.prepaid-g.promiseGas {
		return hostError(HostGasLimitExceeded)
	}
	return hostError(HostGasExceeded)
}

func mulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
