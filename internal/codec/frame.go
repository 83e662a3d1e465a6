// Package codec implements the language-neutral binary wire format used to
// serialise Frame Tuples across the node/master event-socket transport. The
// stack this service was adapted from reaches for protobuf/gRPC wherever
// a typed wire format is needed; that pairing was dropped here because it
// requires hand-generated stubs this codebase cannot fabricate, so the
// format below is a self-describing TLV layout instead, in the same spirit
// as the simple length-prefixed framing already used by the event-socket
// transport it rides on.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"
)

// magic tags the start of every encoded envelope so a reader can fail fast
// on garbage input instead of misinterpreting it.
const magic uint16 = 0xA6 << 8 | 0x05

// version is bumped whenever the layout below changes incompatibly.
const version uint8 = 1

// Envelope is the wire-level record carried by one frame event: the
// serialised Frame Tuple plus the (node, camera) identity the transport
// layer needs to route it, per the event-socket naming convention
// "<node_id>_<camera_sn>".
type Envelope struct {
	NodeID    string
	CameraSN  string
	Timestamp time.Time
	Slots     map[string][]byte
	// Resolutions carries the (width, height) each slot was captured at,
	// so a reader can reshape the flat byte slice back into a 2-D (or
	// 3-D, for multi-channel) array without a side channel back to the
	// originating camera's YAML config.
	Resolutions map[string][2]uint16
}

// Encode serialises e as:
//
//	magic(2) version(1) nodeIDLen(1) nodeID cameraSNLen(1) cameraSN
//	timestampUnixNano(8) slotCount(1)
//	[slotKindLen(1) slotKind slotLen(4) slotBytes width(2) height(2)]...
//
// Slots are written in sorted-kind order so Encode is deterministic.
func Encode(e Envelope) ([]byte, error) {
	if len(e.NodeID) > 255 {
		return nil, fmt.Errorf("codec: node id too long (%d bytes)", len(e.NodeID))
	}
	if len(e.CameraSN) > 255 {
		return nil, fmt.Errorf("codec: camera serial too long (%d bytes)", len(e.CameraSN))
	}
	if len(e.Slots) > 255 {
		return nil, fmt.Errorf("codec: too many slots (%d)", len(e.Slots))
	}

	kinds := make([]string, 0, len(e.Slots))
	for k := range e.Slots {
		if len(k) > 255 {
			return nil, fmt.Errorf("codec: slot kind too long (%d bytes)", len(k))
		}
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, magic)
	buf.WriteByte(version)

	buf.WriteByte(byte(len(e.NodeID)))
	buf.WriteString(e.NodeID)
	buf.WriteByte(byte(len(e.CameraSN)))
	buf.WriteString(e.CameraSN)

	_ = binary.Write(buf, binary.BigEndian, e.Timestamp.UnixNano())

	buf.WriteByte(byte(len(kinds)))
	for _, k := range kinds {
		buf.WriteByte(byte(len(k)))
		buf.WriteString(k)
		payload := e.Slots[k]
		_ = binary.Write(buf, binary.BigEndian, uint32(len(payload)))
		buf.Write(payload)

		res := e.Resolutions[k]
		_ = binary.Write(buf, binary.BigEndian, res[0])
		_ = binary.Write(buf, binary.BigEndian, res[1])
	}

	return buf.Bytes(), nil
}

// Decode parses the layout written by Encode. It validates the magic and
// version before trusting any length-prefixed field.
func Decode(data []byte) (Envelope, error) {
	r := bytes.NewReader(data)

	var gotMagic uint16
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil {
		return Envelope{}, fmt.Errorf("codec: short read on magic: %w", err)
	}
	if gotMagic != magic {
		return Envelope{}, fmt.Errorf("codec: bad magic %#x", gotMagic)
	}

	gotVersion, err := r.ReadByte()
	if err != nil {
		return Envelope{}, fmt.Errorf("codec: short read on version: %w", err)
	}
	if gotVersion != version {
		return Envelope{}, fmt.Errorf("codec: unsupported version %d", gotVersion)
	}

	nodeID, err := readString(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("codec: node id: %w", err)
	}
	cameraSN, err := readString(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("codec: camera serial: %w", err)
	}

	var nanos int64
	if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
		return Envelope{}, fmt.Errorf("codec: timestamp: %w", err)
	}

	slotCount, err := r.ReadByte()
	if err != nil {
		return Envelope{}, fmt.Errorf("codec: slot count: %w", err)
	}

	slots := make(map[string][]byte, slotCount)
	resolutions := make(map[string][2]uint16, slotCount)
	for i := 0; i < int(slotCount); i++ {
		kind, err := readString(r)
		if err != nil {
			return Envelope{}, fmt.Errorf("codec: slot %d kind: %w", i, err)
		}
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Envelope{}, fmt.Errorf("codec: slot %d length: %w", i, err)
		}
		payload := make([]byte, n)
		if _, err := readFull(r, payload); err != nil {
			return Envelope{}, fmt.Errorf("codec: slot %d payload: %w", i, err)
		}
		slots[kind] = payload

		var width, height uint16
		if err := binary.Read(r, binary.BigEndian, &width); err != nil {
			return Envelope{}, fmt.Errorf("codec: slot %d width: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &height); err != nil {
			return Envelope{}, fmt.Errorf("codec: slot %d height: %w", i, err)
		}
		resolutions[kind] = [2]uint16{width, height}
	}

	return Envelope{
		NodeID:      nodeID,
		CameraSN:    cameraSN,
		Timestamp:   time.Unix(0, nanos).UTC(),
		Slots:       slots,
		Resolutions: resolutions,
	}, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// EventName is the transport-level event name for a (node, camera) pair,
// exactly "<node_id>_<camera_sn>" per the wire protocol.
func EventName(nodeID, cameraSN string) string {
	return nodeID + "_" + cameraSN
}
