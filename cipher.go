package vex

import "fmt"

// The keystream generator is a 32-bit linear congruential generator
// seeded from the plaintext length and the key. Wrapping integer
// arithmetic is the normative form of the stream; each step yields one
// byte from the high half of the state.
const (
	lcgMul  uint32 = 1103515245
	lcgAdd  uint32 = 12345
	seedMul uint32 = 57163
)

type keystream struct {
	s uint32
}

// newKeystream seeds the generator from the plaintext length and key.
// Both ends derive the same length: the encryptor from its input, the
// decryptor as cipher_length - key_length + 1.
func newKeystream(plainLen int, key []byte) *keystream {
	s := uint32(plainLen) * seedMul
	for i, k := range key {
		s = (s + uint32(k)*uint32(i+1))*lcgMul + lcgAdd
	}
	return &keystream{s: s}
}

func (g *keystream) next() byte {
	g.s = g.s*lcgMul + lcgAdd
	return byte(g.s >> 16)
}

// Encrypt obfuscates data with a non-empty key. The ciphertext is
// key_length-1 bytes longer than the plaintext: each plaintext byte is
// spread over key_length output positions together with key and
// keystream bytes. The input slice is not modified.
func Encrypt(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty cipher key", ErrBadArgument)
	}
	n, m := len(data), len(key)
	out := make([]byte, n+m-1)
	g := newKeystream(n, key)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			out[i+j] += data[i] + key[j] + g.next()
		}
	}
	return out, nil
}

// Decrypt reverses Encrypt. The keystream is pre-generated from the
// derived plaintext length, then consumed from the tail while the
// ciphertext is unwound highest position first. The input buffer is
// reused: the plaintext occupies its first plain-length bytes on
// return, and the caller must treat the rest as scrambled.
func Decrypt(cipher, key []byte) ([]byte, error) {
	m := len(key)
	if m == 0 {
		return nil, fmt.Errorf("%w: empty cipher key", ErrBadArgument)
	}
	n := len(cipher) - m + 1
	if n < 0 {
		return nil, fmt.Errorf("%w: ciphertext shorter than key", ErrBadArgument)
	}
	if n == 0 {
		return cipher[:0], nil
	}
	g := newKeystream(n, key)
	ks := make([]byte, n*m)
	for i := range ks {
		ks[i] = g.next()
	}
	for i := n - 1; i >= 0; i-- {
		// Position i+m-1 holds the sole remaining contribution of
		// data[i]; once recovered, peel its share off the lower
		// positions. The recovered byte parks in the retired slot.
		d := cipher[i+m-1] - key[m-1] - ks[i*m+m-1]
		for j := m - 2; j >= 0; j-- {
			cipher[i+j] -= d + key[j] + ks[i*m+j]
		}
		cipher[i+m-1] = d
	}
	copy(cipher, cipher[m-1:])
	return cipher[:n], nil
}

// EncryptString encrypts plain with key and returns the transport form.
func EncryptString(plain, key string) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("%w: empty cipher key", ErrBadArgument)
	}
	out, err := Encrypt([]byte(plain), []byte(key))
	if err != nil {
		return "", err
	}
	return EncodeR85(out), nil
}

// DecryptString reverses EncryptString.
func DecryptString(s, key string) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("%w: empty cipher key", ErrBadArgument)
	}
	b, err := DecodeR85(s)
	if err != nil {
		return "", err
	}
	plain, err := Decrypt(b, []byte(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
