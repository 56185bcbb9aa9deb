package envelope

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	key := testKey()
	msg := []byte("witness key encapsulation payload")

	ct, err := Wrap(key, msg)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	pt, err := Unwrap(key, ct)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("got %q, want %q", pt, msg)
	}
}

func TestUnwrapWrongKeyFails(t *testing.T) {
	key := testKey()
	wrongKey := testKey()
	wrongKey[0] ^= 0xff

	ct, err := Wrap(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, err := Unwrap(wrongKey, ct); err == nil {
		t.Fatal("expected Unwrap to fail under the wrong key")
	}
}

func TestUnwrapBitFlipFails(t *testing.T) {
	key := testKey()
	ct, err := Wrap(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	ct[len(ct)-1] ^= 0x01
	if _, err := Unwrap(key, ct); err == nil {
		t.Fatal("expected Unwrap to reject a bit-flipped ciphertext")
	}
}

func TestWrapShortKeyRejected(t *testing.T) {
	shortKey := testKey()[:16]
	if _, err := Wrap(shortKey, []byte("secret")); err == nil {
		t.Fatal("expected Wrap to reject a key shorter than 32 bytes")
	}
}

func TestEncodeDecodeFrameNoPublicInput(t *testing.T) {
	wkemCt := []byte{1, 2, 3, 4, 5}
	aeadCt := []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}

	frame := EncodeFrame(wkemCt, aeadCt, nil)
	decoded, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.HasPublicInput {
		t.Fatal("expected no public input blob")
	}
	if !bytes.Equal(decoded.WkemCiphertext, wkemCt) {
		t.Fatal("wkem ciphertext mismatch")
	}
	if !bytes.Equal(decoded.AEADCiphertext, aeadCt) {
		t.Fatal("aead ciphertext mismatch")
	}
}

func TestEncodeDecodeFrameWithPublicInput(t *testing.T) {
	wkemCt := []byte{1, 2, 3}
	extra := []byte{7, 7, 7, 7}
	aeadCt := []byte{4, 5, 6, 7, 8}

	frame := EncodeFrame(wkemCt, aeadCt, extra)
	decoded, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !decoded.HasPublicInput {
		t.Fatal("expected a public input blob")
	}
	if !bytes.Equal(decoded.PublicInput, extra) {
		t.Fatal("public input mismatch")
	}
	if !bytes.Equal(decoded.WkemCiphertext, wkemCt) {
		t.Fatal("wkem ciphertext mismatch")
	}
	if !bytes.Equal(decoded.AEADCiphertext, aeadCt) {
		t.Fatal("aead ciphertext mismatch")
	}
}

func TestEncryptDecryptFrameRoundTrip(t *testing.T) {
	key := testKey()
	wkemCt := []byte{1, 2, 3, 4}
	msg := []byte("the payload")
	extra := []byte(`{"a":5}`)

	frame, err := EncryptFrame(key, wkemCt, msg, extra)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}
	gotMsg, gotExtra, err := DecryptFrame(key, frame)
	if err != nil {
		t.Fatalf("DecryptFrame: %v", err)
	}
	if !bytes.Equal(gotMsg, msg) {
		t.Fatalf("plaintext mismatch: got %q, want %q", gotMsg, msg)
	}
	if !bytes.Equal(gotExtra, extra) {
		t.Fatalf("blob mismatch: got %q, want %q", gotExtra, extra)
	}
}

func TestDecryptFrameBitFlipFails(t *testing.T) {
	key := testKey()
	frame, err := EncryptFrame(key, []byte{1, 2}, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}
	frame[len(frame)-1] ^= 0x01
	if _, _, err := DecryptFrame(key, frame); err == nil {
		t.Fatal("expected DecryptFrame to reject a bit-flipped frame")
	}
}

func TestDecodeFrameRejectsUnknownFlag(t *testing.T) {
	frame := EncodeFrame([]byte{1}, []byte{2, 3, 4, 5, 6}, nil)
	frame[0] = 2
	if _, err := DecodeFrame(frame); err == nil {
		t.Fatal("expected DecodeFrame to reject flag value 2")
	}
}

func TestDecodeFrameRejectsTruncatedHeader(t *testing.T) {
	if _, err := DecodeFrame([]byte{0, 0, 0}); err == nil {
		t.Fatal("expected DecodeFrame to reject a header shorter than 5 bytes")
	}
}

func TestDecodeFrameRejectsOversizedLength(t *testing.T) {
	frame := EncodeFrame([]byte{1, 2}, []byte{3, 4}, nil)
	frame[4] = 0xff // w_len now claims far more bytes than the frame holds
	if _, err := DecodeFrame(frame); err == nil {
		t.Fatal("expected DecodeFrame to reject an out-of-bounds w_len")
	}
}
