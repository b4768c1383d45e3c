// Package kasa talks to TP-Link smart plugs and switches (HS100, HS105,
// HS110, HS200) over their local TCP protocol.
//
// Every exchange is a single JSON command, obfuscated with an XOR chain and
// prefixed with a 4 byte big-endian length, answered by a single response in
// the same framing.
//
// This implementation is based on:
// https://www.softscheck.com/en/blog/tp-link-reverse-engineering/
package kasa

import (
	"encoding/binary"
)

// InitialKey seeds the XOR chain in both directions.
const InitialKey byte = 171

const headerSize = 4

// Encrypt obfuscates data and prefixes it with its length, ready to be
// written to a device.
func Encrypt(data []byte) []byte {
	return encrypt(InitialKey, data)
}

// Decrypt reverses the obfuscation of a response body. The length header
// must already be stripped.
func Decrypt(data []byte) []byte {
	return decrypt(InitialKey, data)
}

func encrypt(key byte, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))

	for i, c := range data {
		key ^= c
		buf[headerSize+i] = key
	}

	return buf
}

// The running key follows the ciphertext, not the recovered plaintext.
func decrypt(key byte, data []byte) []byte {
	buf := make([]byte, len(data))

	for i, c := range data {
		buf[i] = key ^ c
		key = c
	}

	return buf
}
