package logic

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"
)

// External is the state a contract can affect beyond its own outcome.
// Errors returned by an External are host failures, never contract aborts.
type External interface {
	StorageSet(key, value []byte) error
	StorageGet(key []byte) ([]byte, bool, error)
	StorageRemove(key []byte) error
	StorageHasKey(key []byte) (bool, error)

	// CreateReceipt starts a new receipt and returns its index.
	CreateReceipt(receiver AccountID) (uint64, error)
	AppendActionFunctionCall(receipt uint64, method string, args []byte, deposit *uint256.Int, gas uint64) error
}

// PromiseStatus is the state of a promise the current call depends on.
type PromiseStatus int

const (
	PromiseNotReady PromiseStatus = iota
	PromiseSuccessful
	PromiseFailed
)

// PromiseResult is the result of a promise the current call depends on.
type PromiseResult struct {
	Status PromiseStatus
	Data   []byte
}

// FunctionCallAction is a recorded function-call action.
type FunctionCallAction struct {
	Method  string
	Args    []byte
	Deposit *uint256.Int
	Gas     uint64
}

// Receipt is a recorded outgoing receipt.
type Receipt struct {
	ReceiverID AccountID
	Actions    []FunctionCallAction
}

// MockedExternal is an in-memory External. The zero value is not usable; use
// NewMockedExternal.
type MockedExternal struct {
	storage  map[string][]byte
	Receipts []Receipt
}

var _ External = (*MockedExternal)(nil)

func NewMockedExternal() *MockedExternal {
	return &MockedExternal{storage: make(map[string][]byte)}
}

func (m *MockedExternal) StorageSet(key, value []byte) error {
	m.storage[string(key)] = slices.Clone(value)
	return nil
}

func (m *MockedExternal) StorageGet(key []byte) ([]byte, bool, error) {
	v, ok := m.storage[string(key)]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *MockedExternal) StorageRemove(key []byte) error {
	delete(m.storage, string(key))
	return nil
}

func (m *MockedExternal) StorageHasKey(key []byte) (bool, error) {
	_, ok := m.storage[string(key)]
	return ok, nil
}

func (m *MockedExternal) CreateReceipt(receiver AccountID) (uint64, error) {
	m.Receipts = append(m.Receipts, Receipt{ReceiverID: receiver})
	return uint64(len(m.Receipts) - 1), nil
}

func (m *MockedExternal) AppendActionFunctionCall(receipt uint64, method string, args []byte, deposit *uint256.Int, gas uint64) error {
	if receipt >= uint64(len(m.Receipts)) {
		return fmt.Errorf("receipt %d does not exist", receipt)
	}
	m.Receipts[receipt].Actions = append(m.Receipts[receipt].Actions, FunctionCallAction{
		Method:  method,
		Args:    slices.Clone(args),
		Deposit: cloneInt(deposit),
		Gas:     gas,
	})
	return nil
}

// Len is the number of stored keys.
func (m *MockedExternal) Len() int {
	return len(m.storage)
}
