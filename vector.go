package duckdb

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/google/uuid"
)

// Vector is one column's data within a DataChunk: a raw buffer of
// fixed-width values or variable-length descriptors, plus an optional
// null-validity bitmap. All pointers obtained from a vector alias engine
// memory and are valid only for the lifetime of the enclosing chunk (or, in a
// callback, for the duration of that callback).
type Vector struct {
	handle uintptr
	chunk  *DataChunk
	typ    Type
	rows   int
}

// newOutputVector wraps an engine-provided output vector that has no
// enclosing Go-visible chunk; rows is its writable capacity.
func newOutputVector(handle uintptr, rows int) *Vector {
	return &Vector{handle: handle, rows: rows}
}

// Type returns the vector's logical type, resolved once through the engine's
// logical-type accessors.
func (v *Vector) Type() Type {
	if v.typ == TypeInvalid {
		lt := mustCall("duckdb_vector_get_column_type", v.handle)
		v.typ = Type(mustCall("duckdb_get_type_id", lt))
		mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&lt)))
	}
	return v.typ
}

// rowCount is the number of addressable rows.
func (v *Vector) rowCount() int {
	if v.chunk != nil {
		return v.chunk.Size()
	}
	if v.rows > 0 {
		return v.rows
	}
	return vectorSize()
}

func (v *Vector) dataPtr() unsafe.Pointer {
	return unsafe.Pointer(mustCall("duckdb_vector_get_data", v.handle))
}

func (v *Vector) validityPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(mustCall("duckdb_vector_get_validity", v.handle)))
}

// IsNull tests the validity bit for one row. A vector without a validity
// bitmap has no nulls.
func (v *Vector) IsNull(row int) bool {
	return !rowIsValid(v.validityPtr(), row)
}

// SetNull marks one row as NULL, materializing a writable validity bitmap if
// the vector does not have one yet.
func (v *Vector) SetNull(row int) {
	mustCall("duckdb_vector_ensure_validity_writable", v.handle)
	mustCall("duckdb_validity_set_row_validity", uintptr(unsafe.Pointer(v.validityPtr())), uintptr(row), 0)
}

// setValid clears a row's NULL mark if a bitmap exists.
func (v *Vector) setValid(row int) {
	if mask := v.validityPtr(); mask != nil {
		setRowValid(mask, row, true)
	}
}

// fixedWidth covers the Go representations that map directly onto a vector's
// raw buffer.
type fixedWidth interface {
	~bool | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | hugeInt
}

// compatible reports whether a logical type may be read at the given Go
// representation, including the engine's bitcast rules (DATE is an int32 day
// count, TIMESTAMP and TIME are int64 microsecond counts, UUID is a HUGEINT).
func compatible[T fixedWidth](t Type) bool {
	var sample T
	switch any(sample).(type) {
	case bool:
		return t == TypeBoolean
	case int8:
		return t == TypeTinyInt
	case int16:
		return t == TypeSmallInt
	case int32:
		return t == TypeInteger || t == TypeDate
	case int64:
		return t == TypeBigInt || t == TypeTimestamp || t == TypeTime
	case uint8:
		return t == TypeUTinyInt
	case uint16:
		return t == TypeUSmallInt
	case uint32:
		return t == TypeUInteger
	case uint64:
		return t == TypeUBigInt
	case float32:
		return t == TypeFloat
	case float64:
		return t == TypeDouble
	case hugeInt:
		return t == TypeHugeInt || t == TypeUHugeInt || t == TypeUUID
	default:
		return false
	}
}

// expectedType names the canonical logical type for a Go representation, for
// mismatch error messages.
func expectedType[T fixedWidth]() Type {
	var sample T
	switch any(sample).(type) {
	case bool:
		return TypeBoolean
	case int8:
		return TypeTinyInt
	case int16:
		return TypeSmallInt
	case int32:
		return TypeInteger
	case int64:
		return TypeBigInt
	case uint8:
		return TypeUTinyInt
	case uint16:
		return TypeUSmallInt
	case uint32:
		return TypeUInteger
	case uint64:
		return TypeUBigInt
	case float32:
		return TypeFloat
	case float64:
		return TypeDouble
	case hugeInt:
		return TypeHugeInt
	default:
		return TypeInvalid
	}
}

// VectorData exposes the vector's raw buffer as a typed slice for bulk,
// SIMD-style processing. Only fixed-width types qualify; the slice is valid
// only for the lifetime of the enclosing chunk. NULL rows contain undefined
// values and must be filtered through IsNull or the validity bitmap.
func VectorData[T fixedWidth](v *Vector) ([]T, error) {
	if t := v.Type(); !compatible[T](t) {
		return nil, typeMismatchError(expectedType[T](), t)
	}
	return unsafe.Slice((*T)(v.dataPtr()), v.rowCount()), nil
}

// getFixed reads one fixed-width cell as an optional value.
func getFixed[T fixedWidth](v *Vector, row int) (T, bool, error) {
	var zero T
	data, err := VectorData[T](v)
	if err != nil {
		return zero, false, err
	}
	if row < 0 || row >= len(data) {
		return zero, false, NewErrorf(ErrGeneric, "row index %d out of range", row)
	}
	if v.IsNull(row) {
		return zero, false, nil
	}
	return data[row], true, nil
}

// setFixed writes one fixed-width cell and clears any NULL mark on it.
func setFixed[T fixedWidth](v *Vector, row int, value T) error {
	data, err := VectorData[T](v)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(data) {
		return NewErrorf(ErrGeneric, "row index %d out of range", row)
	}
	data[row] = value
	v.setValid(row)
	return nil
}

// Typed readers. Each returns (value, present, error); present is false for a
// NULL cell.

func GetBool(v *Vector, row int) (bool, bool, error)       { return getFixed[bool](v, row) }
func GetInt8(v *Vector, row int) (int8, bool, error)       { return getFixed[int8](v, row) }
func GetInt16(v *Vector, row int) (int16, bool, error)     { return getFixed[int16](v, row) }
func GetInt32(v *Vector, row int) (int32, bool, error)     { return getFixed[int32](v, row) }
func GetInt64(v *Vector, row int) (int64, bool, error)     { return getFixed[int64](v, row) }
func GetUint8(v *Vector, row int) (uint8, bool, error)     { return getFixed[uint8](v, row) }
func GetUint16(v *Vector, row int) (uint16, bool, error)   { return getFixed[uint16](v, row) }
func GetUint32(v *Vector, row int) (uint32, bool, error)   { return getFixed[uint32](v, row) }
func GetUint64(v *Vector, row int) (uint64, bool, error)   { return getFixed[uint64](v, row) }
func GetFloat32(v *Vector, row int) (float32, bool, error) { return getFixed[float32](v, row) }
func GetFloat64(v *Vector, row int) (float64, bool, error) { return getFixed[float64](v, row) }

// Typed writers.

func SetBool(v *Vector, row int, x bool) error       { return setFixed(v, row, x) }
func SetInt8(v *Vector, row int, x int8) error       { return setFixed(v, row, x) }
func SetInt16(v *Vector, row int, x int16) error     { return setFixed(v, row, x) }
func SetInt32(v *Vector, row int, x int32) error     { return setFixed(v, row, x) }
func SetInt64(v *Vector, row int, x int64) error     { return setFixed(v, row, x) }
func SetUint8(v *Vector, row int, x uint8) error     { return setFixed(v, row, x) }
func SetUint16(v *Vector, row int, x uint16) error   { return setFixed(v, row, x) }
func SetUint32(v *Vector, row int, x uint32) error   { return setFixed(v, row, x) }
func SetUint64(v *Vector, row int, x uint64) error   { return setFixed(v, row, x) }
func SetFloat32(v *Vector, row int, x float32) error { return setFixed(v, row, x) }
func SetFloat64(v *Vector, row int, x float64) error { return setFixed(v, row, x) }

// GetDate reads a DATE cell as a UTC midnight time. Storage is a 32-bit day
// count since the Unix epoch.
func GetDate(v *Vector, row int) (time.Time, bool, error) {
	if t := v.Type(); t != TypeDate {
		return time.Time{}, false, typeMismatchError(TypeDate, t)
	}
	days, ok, err := getFixed[int32](v, row)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.Unix(int64(days)*86400, 0).UTC(), true, nil
}

// SetDate writes a DATE cell.
func SetDate(v *Vector, row int, t time.Time) error {
	return setFixed(v, row, int32(t.Unix()/86400))
}

// GetTimestamp reads a TIMESTAMP cell. Storage is microseconds since the Unix
// epoch.
func GetTimestamp(v *Vector, row int) (time.Time, bool, error) {
	if t := v.Type(); t != TypeTimestamp {
		return time.Time{}, false, typeMismatchError(TypeTimestamp, t)
	}
	micros, ok, err := getFixed[int64](v, row)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.UnixMicro(micros).UTC(), true, nil
}

// SetTimestamp writes a TIMESTAMP cell.
func SetTimestamp(v *Vector, row int, t time.Time) error {
	return setFixed(v, row, t.UnixMicro())
}

// GetTime reads a TIME cell as a duration since midnight.
func GetTime(v *Vector, row int) (time.Duration, bool, error) {
	if t := v.Type(); t != TypeTime {
		return 0, false, typeMismatchError(TypeTime, t)
	}
	micros, ok, err := getFixed[int64](v, row)
	return time.Duration(micros) * time.Microsecond, ok, err
}

// GetUUID reads a UUID cell. UUIDs are stored as HUGEINTs with the top bit
// flipped so that they sort correctly as signed integers.
func GetUUID(v *Vector, row int) (uuid.UUID, bool, error) {
	if t := v.Type(); t != TypeUUID {
		return uuid.UUID{}, false, typeMismatchError(TypeUUID, t)
	}
	h, ok, err := getFixed[hugeInt](v, row)
	if err != nil || !ok {
		return uuid.UUID{}, ok, err
	}
	var id uuid.UUID
	upper := uint64(h.upper) ^ (1 << 63)
	for i := 0; i < 8; i++ {
		id[i] = byte(upper >> (56 - 8*i))
		id[8+i] = byte(h.lower >> (56 - 8*i))
	}
	return id, true, nil
}

// SetUUID writes a UUID cell.
func SetUUID(v *Vector, row int, id uuid.UUID) error {
	var upper, lower uint64
	for i := 0; i < 8; i++ {
		upper = upper<<8 | uint64(id[i])
		lower = lower<<8 | uint64(id[8+i])
	}
	return setFixed(v, row, hugeInt{lower: lower, upper: int64(upper ^ (1 << 63))})
}

// stringData reads one variable-length descriptor. The payload pointer comes
// from the engine's duckdb_string_t accessor, never from arithmetic into the
// parent buffer.
func (v *Vector) stringData(row int) ([]byte, bool, error) {
	if t := v.Type(); t != TypeVarchar && t != TypeBlob {
		return nil, false, typeMismatchError(TypeVarchar, t)
	}
	if row < 0 || row >= v.rowCount() {
		return nil, false, NewErrorf(ErrGeneric, "row index %d out of range", row)
	}
	if v.IsNull(row) {
		return nil, false, nil
	}
	entries := unsafe.Slice((*stringEntry)(v.dataPtr()), v.rowCount())
	entry := &entries[row]
	if entry.length == 0 {
		return []byte{}, true, nil
	}
	data := mustCall("duckdb_string_t_data", uintptr(unsafe.Pointer(entry)))
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), entry.length), true, nil
}

// GetStringBytes reads a VARCHAR or BLOB cell without copying. The returned
// slice aliases engine memory and is only valid while the chunk is alive.
func GetStringBytes(v *Vector, row int) ([]byte, bool, error) {
	return v.stringData(row)
}

// GetString reads a VARCHAR cell into a Go string.
func GetString(v *Vector, row int) (string, bool, error) {
	if t := v.Type(); t != TypeVarchar {
		return "", false, typeMismatchError(TypeVarchar, t)
	}
	b, ok, err := v.stringData(row)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}

// GetBlob reads a BLOB cell into a fresh byte slice.
func GetBlob(v *Vector, row int) ([]byte, bool, error) {
	if t := v.Type(); t != TypeBlob {
		return nil, false, typeMismatchError(TypeBlob, t)
	}
	b, ok, err := v.stringData(row)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

// SetString writes a VARCHAR cell. The engine copies the payload into its own
// buffers.
func SetString(v *Vector, row int, s string) error {
	if t := v.Type(); t != TypeVarchar && t != TypeBlob {
		return typeMismatchError(TypeVarchar, t)
	}
	buf := cString(s)
	mustCall("duckdb_vector_assign_string_element_len", v.handle, uintptr(row),
		cStringPtr(buf), uintptr(len(s)))
	runtime.KeepAlive(buf)
	v.setValid(row)
	return nil
}

// SetBlob writes a BLOB cell.
func SetBlob(v *Vector, row int, b []byte) error {
	if t := v.Type(); t != TypeBlob && t != TypeVarchar {
		return typeMismatchError(TypeBlob, t)
	}
	payload := b
	if len(payload) == 0 {
		payload = []byte{0}
	}
	mustCall("duckdb_vector_assign_string_element_len", v.handle, uintptr(row),
		uintptr(unsafe.Pointer(&payload[0])), uintptr(len(b)))
	runtime.KeepAlive(payload)
	v.setValid(row)
	return nil
}

// ListChild returns a LIST vector's shared child vector. Its row count is the
// total number of child elements, not the chunk's row count.
func ListChild(v *Vector) (*Vector, error) {
	if t := v.Type(); t != TypeList {
		return nil, typeMismatchError(TypeList, t)
	}
	child := mustCall("duckdb_list_vector_get_child", v.handle)
	size := int(mustCall("duckdb_list_vector_get_size", v.handle))
	return &Vector{handle: child, rows: size}, nil
}

// GetList reads one LIST cell as an (offset, length) window into the child
// vector.
func GetList(v *Vector, row int) (offset, length int, present bool, err error) {
	if t := v.Type(); t != TypeList {
		return 0, 0, false, typeMismatchError(TypeList, t)
	}
	if row < 0 || row >= v.rowCount() {
		return 0, 0, false, NewErrorf(ErrGeneric, "row index %d out of range", row)
	}
	if v.IsNull(row) {
		return 0, 0, false, nil
	}
	entries := unsafe.Slice((*listEntry)(v.dataPtr()), v.rowCount())
	return int(entries[row].offset), int(entries[row].length), true, nil
}

// SetList writes one LIST cell's window and grows the child vector as needed.
func SetList(v *Vector, row, offset, length int) error {
	if t := v.Type(); t != TypeList {
		return typeMismatchError(TypeList, t)
	}
	if row < 0 || row >= v.rowCount() {
		return NewErrorf(ErrGeneric, "row index %d out of range", row)
	}
	entries := unsafe.Slice((*listEntry)(v.dataPtr()), v.rowCount())
	entries[row] = listEntry{offset: uint64(offset), length: uint64(length)}
	if end := offset + length; end > int(mustCall("duckdb_list_vector_get_size", v.handle)) {
		if mustCall("duckdb_list_vector_reserve", v.handle, uintptr(end)) != stateSuccess {
			return NewError(ErrGeneric, "failed to reserve list child capacity")
		}
		if mustCall("duckdb_list_vector_set_size", v.handle, uintptr(end)) != stateSuccess {
			return NewError(ErrGeneric, "failed to grow list child")
		}
	}
	v.setValid(row)
	return nil
}

// StructChild returns one field vector of a STRUCT column.
func StructChild(v *Vector, field int) (*Vector, error) {
	if t := v.Type(); t != TypeStruct {
		return nil, typeMismatchError(TypeStruct, t)
	}
	child := mustCall("duckdb_struct_vector_get_child", v.handle, uintptr(field))
	return &Vector{handle: child, chunk: v.chunk, rows: v.rows}, nil
}
