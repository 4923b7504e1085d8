package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version  byte = 1
	kindNear byte = 1
	kindView byte = 2
)

var (
	ErrCorrupt = errors.New("ignite: corrupt record")
	magic4     = [...]byte{'I', 'G', 'N', 'T'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// NearRecord is a near-cache entry: the latest committed state of a key plus
// the metadata needed to validate it against a snapshot and revision store.
type NearRecord struct {
	Rev      uint64 // revision observed before the authoritative read
	Order    uint64 // commit order of the version
	Tx       uint64 // transaction that created the version
	ExpireAt int64  // unix nanos; 0 => never expires
	Payload  []byte
}

// Near: magic(4) | ver(1) | kind(1=near) | rev(u64 be) | order(u64 be) |
// tx(u64 be) | exp(i64 be) | vlen(u32 be) | payload(vlen)
func EncodeNear(r NearRecord) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 8 + 8 + 8 + 4 + len(r.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindNear)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], r.Rev)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], r.Order)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], r.Tx)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(r.ExpireAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])

	buf.Write(r.Payload)
	return buf.Bytes()
}

func DecodeNear(b []byte) (NearRecord, error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindNear {
		return NearRecord{}, ErrCorrupt
	}

	off := 6
	var r NearRecord

	r.Rev = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	r.Order = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	r.Tx = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	r.ExpireAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return NearRecord{}, ErrCorrupt
	}

	r.Payload = b[off : off+vlen]
	return r, nil
}

// ViewRecord is a detached entry-view handle: enough to re-bind the view to
// its owning store on decode. It deliberately carries no value bytes; the
// chain stays authoritative.
type ViewRecord struct {
	Store string // owning store name
	Key   string
	Order uint64 // commit order captured at encode time
}

// View: magic(4) | ver(1) | kind(2=view) | order(u64 be) |
// slen(u16 be) | store(slen) | klen(u16 be) | key(klen)
func EncodeView(r ViewRecord) ([]byte, error) {
	if l := len(r.Store); l == 0 || l > 0xFFFF {
		return nil, ErrCorrupt
	}
	if l := len(r.Key); l == 0 || l > 0xFFFF {
		return nil, ErrCorrupt
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 2 + len(r.Store) + 2 + len(r.Key))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindView)

	var u8 [8]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], r.Order)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.Store)))
	buf.Write(u2[:])
	buf.WriteString(r.Store)

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.Key)))
	buf.Write(u2[:])
	buf.WriteString(r.Key)

	return buf.Bytes(), nil
}

func DecodeView(b []byte) (ViewRecord, error) {
	const hdr = 4 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindView {
		return ViewRecord{}, ErrCorrupt
	}

	off := 6
	var r ViewRecord

	r.Order = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	slen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if slen <= 0 || slen > len(b)-off {
		return ViewRecord{}, ErrCorrupt
	}
	r.Store = string(b[off : off+slen])
	off += slen

	if off+2 > len(b) {
		return ViewRecord{}, ErrCorrupt
	}
	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen <= 0 || klen > len(b)-off {
		return ViewRecord{}, ErrCorrupt
	}
	r.Key = string(b[off : off+klen])

	return r, nil
}
