// Package wire implements the alfred frame and dataset-record codec: a
// 4-byte type/version/length header followed by a type-specific body, with
// PUSH_DATA bodies carrying zero or more TLV-flavored dataset records.
// All multi-byte integers are big-endian on the wire.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net"
)

// FrameType identifies the body layout that follows the fixed header.
type FrameType uint8

const (
	PushData       FrameType = 0
	AnnounceMaster FrameType = 1
	Request        FrameType = 2
	StatusTxEnd    FrameType = 3
	StatusError    FrameType = 4
)

const (
	// HeaderLen is the size of the fixed type|version|length header.
	HeaderLen = 4

	// DatasetRecordHeaderLen is the size of a dataset_record header:
	// source_mac(6) | type(1) | version(1) | length(2).
	DatasetRecordHeaderLen = 10

	// pushDataHeaderLen is tx_id(2) | seqno(2) following the frame header.
	pushDataHeaderLen = 4

	// requestBodyLen is requested_type(1) | tx_id(2).
	requestBodyLen = 3

	// txEndBodyLen is tx_id(2) | seqno(2).
	txEndBodyLen = 4

	// MacLen is the length of a hardware address on the wire.
	MacLen = 6
)

var (
	ErrShortHeader        = errors.New("wire: short frame header")
	ErrLengthMismatch     = errors.New("wire: header length exceeds received bytes")
	ErrUnsupportedVersion = errors.New("wire: unsupported protocol version")
	ErrShortBody          = errors.New("wire: body shorter than type requires")
	ErrPayloadTooLarge    = errors.New("wire: frame exceeds receiver buffer ceiling")
)

// Header is the 4-byte frame header shared by every alfred frame.
type Header struct {
	Type    FrameType
	Version uint8
	Length  uint16
}

// EncodeHeader serializes h into its 4-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = byte(h.Type)
	buf[1] = h.Version
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	return buf
}

// DecodeHeader parses the fixed header from the front of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Type:    FrameType(b[0]),
		Version: b[1],
		Length:  binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// MAC is a 6-byte hardware address, the identity field of a peer and of a
// dataset's source.
type MAC [MacLen]byte

// HardwareAddr converts back to the standard library's representation.
func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m MAC) String() string {
	return hex.EncodeToString(m[:2]) + ":" + hex.EncodeToString(m[2:4]) + ":" + hex.EncodeToString(m[4:6])
}

// DatasetRecord is one opaque payload entry as it appears inside a
// PUSH_DATA body.
type DatasetRecord struct {
	SourceMAC MAC
	Type      uint8
	Version   uint8
	Payload   []byte
}

// EncodeDatasetRecord serializes one dataset_record TLV.
func EncodeDatasetRecord(r DatasetRecord) []byte {
	buf := make([]byte, DatasetRecordHeaderLen+len(r.Payload))
	copy(buf[0:6], r.SourceMAC[:])
	buf[6] = r.Type
	buf[7] = r.Version
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(r.Payload)))
	copy(buf[DatasetRecordHeaderLen:], r.Payload)
	return buf
}

// DecodeDatasetRecords parses zero or more dataset_records from payload,
// left to right. A trailing remainder too short for a full record header,
// or whose declared length runs past the buffer, is discarded silently
// rather than treated as an error (truncated tail tolerated per the wire
// contract).
func DecodeDatasetRecords(payload []byte) []DatasetRecord {
	var records []DatasetRecord
	off := 0
	for off+DatasetRecordHeaderLen <= len(payload) {
		var mac MAC
		copy(mac[:], payload[off:off+6])
		recType := payload[off+6]
		recVersion := payload[off+7]
		length := binary.BigEndian.Uint16(payload[off+8 : off+10])
		off += DatasetRecordHeaderLen
		if int(length) > len(payload)-off {
			break
		}
		val := make([]byte, length)
		copy(val, payload[off:off+int(length)])
		off += int(length)
		records = append(records, DatasetRecord{
			SourceMAC: mac,
			Type:      recType,
			Version:   recVersion,
			Payload:   val,
		})
	}
	return records
}

// PushDataBody is the parsed body of a PUSH_DATA frame.
type PushDataBody struct {
	TxID    uint16
	Seqno   uint16
	Records []DatasetRecord
}

// EncodePushDataBody serializes a PUSH_DATA body (tx_id, seqno, records).
func EncodePushDataBody(b PushDataBody) []byte {
	out := make([]byte, pushDataHeaderLen)
	binary.BigEndian.PutUint16(out[0:2], b.TxID)
	binary.BigEndian.PutUint16(out[2:4], b.Seqno)
	for _, r := range b.Records {
		out = append(out, EncodeDatasetRecord(r)...)
	}
	return out
}

// DecodePushDataBody parses a PUSH_DATA body.
func DecodePushDataBody(body []byte) (PushDataBody, error) {
	if len(body) < pushDataHeaderLen {
		return PushDataBody{}, ErrShortBody
	}
	return PushDataBody{
		TxID:    binary.BigEndian.Uint16(body[0:2]),
		Seqno:   binary.BigEndian.Uint16(body[2:4]),
		Records: DecodeDatasetRecords(body[pushDataHeaderLen:]),
	}, nil
}

// RequestBody is the parsed body of a REQUEST frame.
type RequestBody struct {
	RequestedType uint8
	TxID          uint16
}

func EncodeRequestBody(b RequestBody) []byte {
	out := make([]byte, requestBodyLen)
	out[0] = b.RequestedType
	binary.BigEndian.PutUint16(out[1:3], b.TxID)
	return out
}

func DecodeRequestBody(body []byte) (RequestBody, error) {
	if len(body) < requestBodyLen {
		return RequestBody{}, ErrShortBody
	}
	return RequestBody{
		RequestedType: body[0],
		TxID:          binary.BigEndian.Uint16(body[1:3]),
	}, nil
}

// TxEndBody is the parsed body of a STATUS_TXEND frame.
type TxEndBody struct {
	TxID  uint16
	Seqno uint16
}

func EncodeTxEndBody(b TxEndBody) []byte {
	out := make([]byte, txEndBodyLen)
	binary.BigEndian.PutUint16(out[0:2], b.TxID)
	binary.BigEndian.PutUint16(out[2:4], b.Seqno)
	return out
}

func DecodeTxEndBody(body []byte) (TxEndBody, error) {
	if len(body) < txEndBodyLen {
		return TxEndBody{}, ErrShortBody
	}
	return TxEndBody{
		TxID:  binary.BigEndian.Uint16(body[0:2]),
		Seqno: binary.BigEndian.Uint16(body[2:4]),
	}, nil
}

// Frame is one fully decoded alfred frame: header plus type-specific body.
// Only the field matching Type is populated by Decode.
type Frame struct {
	Header   Header
	PushData PushDataBody
	Request  RequestBody
	TxEnd    TxEndBody
}

// Encode serializes a full frame (header + body) for the given type.
func Encode(t FrameType, version uint8, body []byte) []byte {
	h := EncodeHeader(Header{Type: t, Version: version, Length: uint16(len(body))})
	return append(h, body...)
}

// Decode parses one complete frame out of b (typically one UDP datagram).
// It enforces the header's declared length against the bytes actually
// received and rejects a version mismatch; everything past
// HeaderLen+Length is ignored, not an error.
func Decode(b []byte, wantVersion uint8, maxPayload int) (Frame, error) {
	if maxPayload > 0 && len(b) > maxPayload {
		return Frame{}, ErrPayloadTooLarge
	}
	h, err := DecodeHeader(b)
	if err != nil {
		return Frame{}, err
	}
	if len(b) < HeaderLen+int(h.Length) {
		return Frame{}, ErrLengthMismatch
	}
	if h.Version != wantVersion {
		return Frame{}, ErrUnsupportedVersion
	}
	body := b[HeaderLen : HeaderLen+int(h.Length)]

	f := Frame{Header: h}
	switch h.Type {
	case PushData:
		pd, err := DecodePushDataBody(body)
		if err != nil {
			return Frame{}, err
		}
		f.PushData = pd
	case Request:
		req, err := DecodeRequestBody(body)
		if err != nil {
			return Frame{}, err
		}
		f.Request = req
	case StatusTxEnd:
		te, err := DecodeTxEndBody(body)
		if err != nil {
			return Frame{}, err
		}
		f.TxEnd = te
	case AnnounceMaster, StatusError:
		// no body fields to parse.
	}
	return f, nil
}
