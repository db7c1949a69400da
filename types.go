package duckdb

import (
	"unsafe"
)

// Type is a DuckDB logical type tag, matching the DUCKDB_TYPE_* values of the
// C API.
type Type int

const (
	TypeInvalid   Type = 0
	TypeBoolean   Type = 1
	TypeTinyInt   Type = 2
	TypeSmallInt  Type = 3
	TypeInteger   Type = 4
	TypeBigInt    Type = 5
	TypeUTinyInt  Type = 6
	TypeUSmallInt Type = 7
	TypeUInteger  Type = 8
	TypeUBigInt   Type = 9
	TypeFloat     Type = 10
	TypeDouble    Type = 11
	TypeTimestamp Type = 12
	TypeDate      Type = 13
	TypeTime      Type = 14
	TypeInterval  Type = 15
	TypeHugeInt   Type = 16
	TypeUHugeInt  Type = 32
	TypeVarchar   Type = 17
	TypeBlob      Type = 18
	TypeList      Type = 24
	TypeStruct    Type = 25
	TypeUUID      Type = 27
)

var typeNames = map[Type]string{
	TypeInvalid:   "INVALID",
	TypeBoolean:   "BOOLEAN",
	TypeTinyInt:   "TINYINT",
	TypeSmallInt:  "SMALLINT",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeUTinyInt:  "UTINYINT",
	TypeUSmallInt: "USMALLINT",
	TypeUInteger:  "UINTEGER",
	TypeUBigInt:   "UBIGINT",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
	TypeTimestamp: "TIMESTAMP",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeInterval:  "INTERVAL",
	TypeHugeInt:   "HUGEINT",
	TypeUHugeInt:  "UHUGEINT",
	TypeVarchar:   "VARCHAR",
	TypeBlob:      "BLOB",
	TypeList:      "LIST",
	TypeStruct:    "STRUCT",
	TypeUUID:      "UUID",
}

// String returns the SQL name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// physicalWidth returns the fixed byte width of a type's in-vector storage,
// or 0 for variable-length and nested types.
func physicalWidth(t Type) int {
	switch t {
	case TypeBoolean, TypeTinyInt, TypeUTinyInt:
		return 1
	case TypeSmallInt, TypeUSmallInt:
		return 2
	case TypeInteger, TypeUInteger, TypeFloat, TypeDate:
		return 4
	case TypeBigInt, TypeUBigInt, TypeDouble, TypeTimestamp, TypeTime:
		return 8
	case TypeHugeInt, TypeUHugeInt, TypeUUID, TypeInterval:
		return 16
	default:
		return 0
	}
}

// hugeInt mirrors duckdb_hugeint: a 128-bit integer stored as lower/upper halves.
type hugeInt struct {
	lower uint64
	upper int64
}

// stringEntry mirrors duckdb_string_t. Strings of at most 12 bytes are stored
// inline; longer strings keep a 4-byte prefix and a pointer to the full data.
type stringEntry struct {
	length uint32
	prefix [4]byte
	ptr    unsafe.Pointer
}

// Strings up to this length are stored inline in the descriptor itself.
const stringInlineLength = 12

// listEntry mirrors duckdb_list_entry: one row's slice of a list column's
// shared child vector.
type listEntry struct {
	offset uint64
	length uint64
}

// rowIsValid tests one row's bit in a validity bitmap. A nil mask means all
// rows are valid.
func rowIsValid(mask *uint64, row int) bool {
	if mask == nil {
		return true
	}
	words := unsafe.Slice(mask, row/64+1)
	return words[row/64]&(1<<(uint(row)%64)) != 0
}

// setRowValid flips one row's bit in a writable validity bitmap.
func setRowValid(mask *uint64, row int, valid bool) {
	words := unsafe.Slice(mask, row/64+1)
	bit := uint64(1) << (uint(row) % 64)
	if valid {
		words[row/64] |= bit
	} else {
		words[row/64] &^= bit
	}
}
