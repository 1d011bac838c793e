package webfig

import (
	"bytes"
	"crypto/rand"
	"crypto/rc4"  //nolint:gosec // the WebFig transport is RC4 by protocol
	"crypto/sha1" //nolint:gosec // key derivation is fixed by the router
	"encoding/binary"
	"fmt"

	"github.com/nimda/routeros-brute/pkg/utils"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/text/encoding/charmap"
)

const (
	keySize       = 32
	handshakeSize = 8 + keySize
	headerSize    = 8
	rc4Drop       = 768
	padding       = "        "

	clientRxLabel = "On the client side, this is the receive key; on the server side, it is the send key."
	clientTxLabel = "On the client side, this is the send key; on the server side, it is the receive key."
)

// Keys hold one side of a curve25519 exchange in the byte order the router
// uses on the wire, which is the reverse of RFC 7748.
type Keys struct {
	Private []byte
	Public  []byte
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// GenerateKeys creates a clamped key pair
func GenerateKeys() (*Keys, error) {
	priv := make([]byte, keySize)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(reversed(priv), curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &Keys{Private: priv, Public: pub}, nil
}

// Shared computes the shared secret with a peer public key as read off the wire
func (k *Keys) Shared(peerWire []byte) ([]byte, error) {
	if len(peerWire) != keySize {
		return nil, utils.NewProtocolError(fmt.Sprintf("peer key has %d bytes", len(peerWire)))
	}
	shared, err := curve25519.X25519(reversed(k.Private), reversed(peerWire))
	if err != nil {
		return nil, utils.NewProtocolError("invalid peer key: " + err.Error())
	}
	return reversed(shared), nil
}

// WirePublic is the public key as sent to the peer
func (k *Keys) WirePublic() []byte {
	return reversed(k.Public)
}

func streamCipher(shared []byte, label string) (*rc4.Cipher, error) {
	var seed bytes.Buffer
	seed.Write(shared)
	seed.Write(make([]byte, 40))
	seed.WriteString(label)
	seed.Write(bytes.Repeat([]byte{0xf2}, 40))
	sum := sha1.Sum(seed.Bytes()) //nolint:gosec

	c, err := rc4.NewCipher(sum[:16]) //nolint:gosec
	if err != nil {
		return nil, err
	}
	drop := make([]byte, rc4Drop)
	c.XORKeyStream(drop, drop)
	return c, nil
}

// Session is an established encrypted WebFig channel
type Session struct {
	ID  uint32
	seq uint32
	rx  *rc4.Cipher
	tx  *rc4.Cipher
}

// NewSession derives both directions from the shared secret. server flips
// the key labels so a fake router can talk to a client.
func NewSession(id uint32, shared []byte, server bool) (*Session, error) {
	rxLabel, txLabel := clientRxLabel, clientTxLabel
	if server {
		rxLabel, txLabel = txLabel, rxLabel
	}
	rx, err := streamCipher(shared, rxLabel)
	if err != nil {
		return nil, err
	}
	tx, err := streamCipher(shared, txLabel)
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, seq: 1, rx: rx, tx: tx}, nil
}

// Seal encrypts an M2 message into a framed request body
func (s *Session) Seal(msg *Message) []byte {
	plain := append([]byte("M2"), msg.Marshal()...)
	plain = append(plain, padding...)

	out := make([]byte, headerSize, headerSize+len(plain))
	binary.BigEndian.PutUint32(out[0:4], s.ID)
	binary.BigEndian.PutUint32(out[4:8], s.seq)
	s.seq += uint32(len(plain))

	enc := make([]byte, len(plain))
	s.tx.XORKeyStream(enc, plain)
	return append(out, enc...)
}

// Open decrypts a framed body and decodes the M2 message inside
func (s *Session) Open(frame []byte) (*Message, error) {
	if len(frame) < headerSize+len(padding) {
		return nil, utils.NewProtocolError(fmt.Sprintf("webfig frame too short (%d bytes)", len(frame)))
	}
	body := frame[headerSize:]
	plain := make([]byte, len(body))
	s.rx.XORKeyStream(plain, body)
	return Unmarshal(plain[:len(plain)-len(padding)])
}

// EncodeHandshake maps raw bytes to the text form jsproxy expects: every
// byte becomes its Latin-1 rune in UTF-8, with NUL sent as U+0100.
func EncodeHandshake(raw []byte) ([]byte, error) {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	return bytes.ReplaceAll(text, []byte{0x00}, []byte{0xc4, 0x80}), nil
}

// DecodeHandshake reverses EncodeHandshake
func DecodeHandshake(text []byte) ([]byte, error) {
	text = bytes.ReplaceAll(text, []byte{0xc4, 0x80}, []byte{0x00})
	raw, err := charmap.ISO8859_1.NewEncoder().Bytes(text)
	if err != nil {
		return nil, utils.NewProtocolError("handshake is not latin-1 text")
	}
	return raw, nil
}
