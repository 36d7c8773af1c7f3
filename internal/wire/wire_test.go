package wire

import (
	"bytes"
	"errors"
	"testing"
)

const testVersion = 1

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: PushData, Version: testVersion, Length: 42}
	out, err := DecodeHeader(EncodeHeader(h))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if out != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", out, h)
	}
}

func TestDatasetRecordRoundTrip(t *testing.T) {
	rec := DatasetRecord{
		SourceMAC: MAC{0xaa, 0x01, 0x02, 0x03, 0x04, 0xaa},
		Type:      64,
		Version:   1,
		Payload:   []byte("hello"),
	}
	encoded := EncodeDatasetRecord(rec)
	decoded := DecodeDatasetRecords(encoded)
	if len(decoded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(decoded))
	}
	if decoded[0].SourceMAC != rec.SourceMAC || decoded[0].Type != rec.Type ||
		decoded[0].Version != rec.Version || !bytes.Equal(decoded[0].Payload, rec.Payload) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", decoded[0], rec)
	}
}

func TestDecodeDatasetRecordsTruncatedTailTolerated(t *testing.T) {
	rec := EncodeDatasetRecord(DatasetRecord{Type: 1, Payload: []byte("ab")})
	// Append a header-sized-but-incomplete trailing fragment.
	buf := append(rec, []byte{0, 0, 0, 0, 0, 0, 1, 0, 0, 5}...)
	out := DecodeDatasetRecords(buf)
	if len(out) != 1 {
		t.Fatalf("expected truncated tail to be silently dropped, got %d records", len(out))
	}
}

func TestPushDataBodyRoundTrip(t *testing.T) {
	body := PushDataBody{
		TxID:  7,
		Seqno: 2,
		Records: []DatasetRecord{
			{Type: 1, Payload: []byte("a")},
			{Type: 2, Payload: []byte("bc")},
		},
	}
	out, err := DecodePushDataBody(EncodePushDataBody(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TxID != body.TxID || out.Seqno != body.Seqno || len(out.Records) != len(body.Records) {
		t.Fatalf("round-trip mismatch: got %+v", out)
	}
}

func TestFrameRoundTripEncodeDecode(t *testing.T) {
	body := EncodePushDataBody(PushDataBody{
		TxID:  1,
		Seqno: 0,
		Records: []DatasetRecord{
			{SourceMAC: MAC{1, 2, 3, 4, 5, 6}, Type: 9, Version: 1, Payload: []byte("payload")},
		},
	})
	raw := Encode(PushData, testVersion, body)
	frame, err := Decode(raw, testVersion, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Header.Type != PushData || len(frame.PushData.Records) != 1 {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	reencoded := Encode(PushData, testVersion, EncodePushDataBody(frame.PushData))
	if !bytes.Equal(raw, reencoded) {
		t.Fatalf("re-encode mismatch:\n got  %x\n want %x", reencoded, raw)
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{0, 1}, testVersion, 0)
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	h := EncodeHeader(Header{Type: AnnounceMaster, Version: testVersion, Length: 10})
	_, err := Decode(h, testVersion, 0)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	raw := Encode(AnnounceMaster, testVersion+1, nil)
	_, err := Decode(raw, testVersion, 0)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	raw := Encode(AnnounceMaster, testVersion, nil)
	_, err := Decode(raw, testVersion, HeaderLen-1)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestRequestAndTxEndBodyRoundTrip(t *testing.T) {
	req := RequestBody{RequestedType: 66, TxID: 42}
	outReq, err := DecodeRequestBody(EncodeRequestBody(req))
	if err != nil || outReq != req {
		t.Fatalf("request round-trip mismatch: got %+v err %v", outReq, err)
	}

	end := TxEndBody{TxID: 42, Seqno: 3}
	outEnd, err := DecodeTxEndBody(EncodeTxEndBody(end))
	if err != nil || outEnd != end {
		t.Fatalf("txend round-trip mismatch: got %+v err %v", outEnd, err)
	}
}
