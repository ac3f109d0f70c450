package config

import "fmt"

// PrepareVersion identifies a bytecode preparation pipeline.
type PrepareVersion uint8

const (
	// PrepareAny is declared by backends that accept every pipeline.
	PrepareAny PrepareVersion = 0
	PrepareV1  PrepareVersion = 1
	PrepareV2  PrepareVersion = 2
)

func (p PrepareVersion) String() string {
	if p == PrepareAny {
		return "any"
	}
	return fmt.Sprintf("V%d", uint8(p))
}

// RuntimeConfig is the resolved configuration for one protocol version.
type RuntimeConfig struct {
	Version ProtocolVersion `yaml:"-" json:"version"`
	Wasm    WasmConfig      `yaml:"wasm" json:"wasm"`
	Fees    Fees            `yaml:"fees" json:"fees"`
}

// WasmConfig covers everything the preparation pipeline and host functions need.
type WasmConfig struct {
	RegularOpCost uint64   `yaml:"regular_op_cost" json:"regular_op_cost"`
	ExtCosts      ExtCosts `yaml:"ext_costs" json:"ext_costs"`
	Limits        Limits   `yaml:"limits" json:"limits"`
}

// Limits bounds contract size, memory, call depth and host-function inputs.
type Limits struct {
	PrepareVersion        PrepareVersion `yaml:"prepare_version" json:"prepare_version"`
	MaxGasBurnt           uint64         `yaml:"max_gas_burnt" json:"max_gas_burnt"`
	MaxContractSize       uint64         `yaml:"max_contract_size" json:"max_contract_size"`
	MaxFunctionsNumber    uint64         `yaml:"max_functions_number" json:"max_functions_number"`
	MaxMemoryPages        uint32         `yaml:"max_memory_pages" json:"max_memory_pages"`
	MaxStackHeight        uint64         `yaml:"max_stack_height" json:"max_stack_height"`
	MaxRegisterSize       uint64         `yaml:"max_register_size" json:"max_register_size"`
	MaxNumberRegisters    uint64         `yaml:"max_number_registers" json:"max_number_registers"`
	MaxNumberLogs         uint64         `yaml:"max_number_logs" json:"max_number_logs"`
	MaxTotalLogLength     uint64         `yaml:"max_total_log_length" json:"max_total_log_length"`
	MaxLengthStorageKey   uint64         `yaml:"max_length_storage_key" json:"max_length_storage_key"`
	MaxLengthStorageValue uint64         `yaml:"max_length_storage_value" json:"max_length_storage_value"`
	MaxLengthReturnedData uint64         `yaml:"max_length_returned_data" json:"max_length_returned_data"`
}

// ExtCosts prices host functions.
type ExtCosts struct {
	Base                      uint64 `yaml:"base" json:"base"`
	ContractLoadingBase       uint64 `yaml:"contract_loading_base" json:"contract_loading_base"`
	ContractLoadingBytes      uint64 `yaml:"contract_loading_bytes" json:"contract_loading_bytes"`
	ReadMemoryBase            uint64 `yaml:"read_memory_base" json:"read_memory_base"`
	ReadMemoryByte            uint64 `yaml:"read_memory_byte" json:"read_memory_byte"`
	WriteMemoryBase           uint64 `yaml:"write_memory_base" json:"write_memory_base"`
	WriteMemoryByte           uint64 `yaml:"write_memory_byte" json:"write_memory_byte"`
	ReadRegisterBase          uint64 `yaml:"read_register_base" json:"read_register_base"`
	ReadRegisterByte          uint64 `yaml:"read_register_byte" json:"read_register_byte"`
	WriteRegisterBase         uint64 `yaml:"write_register_base" json:"write_register_base"`
	WriteRegisterByte         uint64 `yaml:"write_register_byte" json:"write_register_byte"`
	Utf8DecodingBase          uint64 `yaml:"utf8_decoding_base" json:"utf8_decoding_base"`
	Utf8DecodingByte          uint64 `yaml:"utf8_decoding_byte" json:"utf8_decoding_byte"`
	LogBase                   uint64 `yaml:"log_base" json:"log_base"`
	LogByte                   uint64 `yaml:"log_byte" json:"log_byte"`
	StorageWriteBase          uint64 `yaml:"storage_write_base" json:"storage_write_base"`
	StorageWriteKeyByte       uint64 `yaml:"storage_write_key_byte" json:"storage_write_key_byte"`
	StorageWriteValueByte     uint64 `yaml:"storage_write_value_byte" json:"storage_write_value_byte"`
	StorageWriteEvictedByte   uint64 `yaml:"storage_write_evicted_byte" json:"storage_write_evicted_byte"`
	StorageReadBase           uint64 `yaml:"storage_read_base" json:"storage_read_base"`
	StorageReadKeyByte        uint64 `yaml:"storage_read_key_byte" json:"storage_read_key_byte"`
	StorageReadValueByte      uint64 `yaml:"storage_read_value_byte" json:"storage_read_value_byte"`
	StorageRemoveBase         uint64 `yaml:"storage_remove_base" json:"storage_remove_base"`
	StorageRemoveKeyByte      uint64 `yaml:"storage_remove_key_byte" json:"storage_remove_key_byte"`
	StorageRemoveRetValueByte uint64 `yaml:"storage_remove_ret_value_byte" json:"storage_remove_ret_value_byte"`
	StorageHasKeyBase         uint64 `yaml:"storage_has_key_base" json:"storage_has_key_base"`
	StorageHasKeyByte         uint64 `yaml:"storage_has_key_byte" json:"storage_has_key_byte"`
	PromiseReturn             uint64 `yaml:"promise_return" json:"promise_return"`
}

// Fee is split between the sender's burnt gas and gas prepaid for execution.
type Fee struct {
	SendNotSir uint64 `yaml:"send_not_sir" json:"send_not_sir"`
	Execution  uint64 `yaml:"execution" json:"execution"`
}

// Fees prices receipts created by a contract and accounts storage usage.
type Fees struct {
	NumExtraBytesRecord   uint64 `yaml:"num_extra_bytes_record" json:"num_extra_bytes_record"`
	ActionReceiptCreation Fee    `yaml:"action_receipt_creation" json:"action_receipt_creation"`
	FunctionCallBase      Fee    `yaml:"function_call_base" json:"function_call_base"`
	FunctionCallPerByte   Fee    `yaml:"function_call_per_byte" json:"function_call_per_byte"`
}

// TestFees is the fixed fee schedule used by the differential harness.
// Fees are not under test there, so every protocol version shares them.
func TestFees() *Fees {
	return &Fees{
		NumExtraBytesRecord:   40,
		ActionReceiptCreation: Fee{SendNotSir: 108_059_500_000, Execution: 108_059_500_000},
		FunctionCallBase:      Fee{SendNotSir: 2_319_861_500_000, Execution: 2_319_861_500_000},
		FunctionCallPerByte:   Fee{SendNotSir: 2_235_934, Execution: 2_235_934},
	}
}
