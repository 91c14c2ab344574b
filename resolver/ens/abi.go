package ens

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

var errShortReturn = errors.New("ens: short return data")

func keccak(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func selector(signature string) []byte {
	return keccak([]byte(signature))[:4]
}

var (
	selResolver = selector("resolver(bytes32)")
	selAddr     = selector("addr(bytes32)")
	selText     = selector("text(bytes32,string)")
)

// Namehash implements the ENS recursive name hash. The name must already be
// normalised.
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		copy(node[:], keccak(node[:], keccak([]byte(labels[i]))))
	}
	return node
}

func encodeNodeCall(sel []byte, node [32]byte) []byte {
	out := make([]byte, 0, 4+wordSize)
	out = append(out, sel...)
	return append(out, node[:]...)
}

func encodeTextCall(node [32]byte, key string) []byte {
	padded := (len(key) + wordSize - 1) / wordSize * wordSize
	out := make([]byte, 0, 4+3*wordSize+padded)
	out = append(out, selText...)
	out = append(out, node[:]...)
	out = append(out, uintWord(2*wordSize)...)
	out = append(out, uintWord(uint64(len(key)))...)
	out = append(out, key...)
	return append(out, make([]byte, padded-len(key))...)
}

func uintWord(v uint64) []byte {
	w := make([]byte, wordSize)
	new(big.Int).SetUint64(v).FillBytes(w)
	return w
}

func decodeAddress(ret []byte) (string, bool, error) {
	if len(ret) < wordSize {
		return "", false, errShortReturn
	}
	word := ret[:wordSize]
	allZero := true
	for _, b := range word[12:] {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "", false, nil
	}
	return "0x" + hex.EncodeToString(word[12:]), true, nil
}

func decodeString(ret []byte) (string, error) {
	if len(ret) == 0 {
		return "", nil
	}
	if len(ret) < 2*wordSize {
		return "", errShortReturn
	}
	off := new(big.Int).SetBytes(ret[:wordSize])
	if !off.IsUint64() || off.Uint64() > uint64(len(ret)-wordSize) {
		return "", fmt.Errorf("ens: string offset %s out of range", off)
	}
	start := off.Uint64()
	n := new(big.Int).SetBytes(ret[start : start+wordSize])
	if !n.IsUint64() || n.Uint64() > uint64(len(ret))-start-wordSize {
		return "", fmt.Errorf("ens: string length %s out of range", n)
	}
	body := ret[start+wordSize : start+wordSize+n.Uint64()]
	return string(body), nil
}
