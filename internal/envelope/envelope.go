// Package envelope implements the AEAD wrap/unwrap primitive and the
// combined-frame format: AES-256-GCM with a random 12-byte nonce per
// call, and a frame that bundles a WKEM ciphertext with an optional
// public-input blob ahead of the AEAD payload.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

const (
	keySize   = 32
	nonceSize = 12
)

// Wrap encrypts msg under key with AES-256-GCM and a fresh random
// nonce, returning nonce || ciphertext || tag.
func Wrap(key, msg []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "nonce generation", err)
	}
	return gcm.Seal(nonce, nonce, msg, nil), nil
}

// Unwrap splits buf into nonce and ciphertext, verifies the tag, and
// returns the plaintext.
func Unwrap(key, buf []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(buf) < nonceSize {
		return nil, wkemerr.New(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "frame shorter than nonce")
	}
	nonce, ct := buf[:nonceSize], buf[nonceSize:]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "GCM authentication failed", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) < keySize {
		return nil, wkemerr.New(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "key shorter than 32 bytes")
	}
	block, err := aes.NewCipher(key[:keySize])
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "AES key setup", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindAEAD, wkemerr.CodeAuthenticationFailed, "GCM setup", err)
	}
	return gcm, nil
}

// Frame is the decoded combined-ciphertext layout:
//
//	[flag(1) | w_len(4 BE) | wkemCiphertext | (flag=1: p_len(4 BE) | publicInputBlob) | aeadCiphertext]
type Frame struct {
	WkemCiphertext []byte
	PublicInput    []byte // nil unless the flag byte is 1
	HasPublicInput bool
	AEADCiphertext []byte
}

// EncodeFrame assembles a combined frame. extra is embedded verbatim
// (flag=1) when non-nil; when nil the flag byte is 0 and no blob is
// written.
func EncodeFrame(wkemCiphertext, aeadCiphertext, extra []byte) []byte {
	hasExtra := extra != nil
	size := 1 + 4 + len(wkemCiphertext) + len(aeadCiphertext)
	if hasExtra {
		size += 4 + len(extra)
	}
	out := make([]byte, 0, size)

	var flag byte
	if hasExtra {
		flag = 1
	}
	out = append(out, flag)
	out = appendU32BE(out, uint32(len(wkemCiphertext)))
	out = append(out, wkemCiphertext...)
	if hasExtra {
		out = appendU32BE(out, uint32(len(extra)))
		out = append(out, extra...)
	}
	out = append(out, aeadCiphertext...)
	return out
}

// DecodeFrame parses a combined frame. A flag byte outside {0, 1} is a
// BadFrame error; the AEAD is never invoked with undefined framing
// semantics.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 5 {
		return Frame{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "frame shorter than minimum header")
	}
	flag := buf[0]
	if flag != 0 && flag != 1 {
		return Frame{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "unrecognized flag byte")
	}

	wLen := binary.BigEndian.Uint32(buf[1:5])
	offset := 5
	if uint64(offset)+uint64(wLen) > uint64(len(buf)) {
		return Frame{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "w_len exceeds frame bounds")
	}
	wkemCiphertext := buf[offset : offset+int(wLen)]
	offset += int(wLen)

	var extra []byte
	if flag == 1 {
		if offset+4 > len(buf) {
			return Frame{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "missing public-input length prefix")
		}
		pLen := binary.BigEndian.Uint32(buf[offset : offset+4])
		offset += 4
		if uint64(offset)+uint64(pLen) > uint64(len(buf)) {
			return Frame{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "p_len exceeds frame bounds")
		}
		extra = buf[offset : offset+int(pLen)]
		offset += int(pLen)
	}

	return Frame{
		WkemCiphertext: wkemCiphertext,
		PublicInput:    extra,
		HasPublicInput: flag == 1,
		AEADCiphertext: buf[offset:],
	}, nil
}

// EncryptFrame wraps msg under key and assembles the combined frame
// around wkemCiphertext in one step. extra, when non-nil, is embedded
// verbatim with flag=1.
func EncryptFrame(key, wkemCiphertext, msg, extra []byte) ([]byte, error) {
	aeadCt, err := Wrap(key, msg)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(wkemCiphertext, aeadCt, extra), nil
}

// DecryptFrame parses the combined frame, verifies and decrypts the
// AEAD payload under key, and returns the plaintext together with the
// embedded public-input blob (nil when the flag byte was 0).
func DecryptFrame(key, buf []byte) (msg, extra []byte, err error) {
	frame, err := DecodeFrame(buf)
	if err != nil {
		return nil, nil, err
	}
	msg, err = Unwrap(key, frame.AEADCiphertext)
	if err != nil {
		return nil, nil, err
	}
	return msg, frame.PublicInput, nil
}

func appendU32BE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}
