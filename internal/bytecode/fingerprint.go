package bytecode

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a hex blake2b-256 digest of the function tree's canonical encoding.
func Fingerprint(fn *Function) string {
	h, _ := blake2b.New256(nil)
	writeFunction(h, fn)
	return hex.EncodeToString(h.Sum(nil))
}

func writeFunction(h hash.Hash, fn *Function) {
	if fn == nil {
		writeUint(h, 0)
		return
	}
	writeUint(h, uint64(len(fn.Instructions)))
	for _, ins := range fn.Instructions {
		writeUint(h, uint64(ins.Op))
		writeUint(h, uint64(ins.A))
		writeUint(h, uint64(uint32(ins.B)))
		writeUint(h, uint64(uint32(ins.C)))
	}
	writeUint(h, uint64(len(fn.Constants)))
	for _, c := range fn.Constants {
		writeUint(h, uint64(c.Kind))
		switch c.Kind {
		case ConstString:
			writeUint(h, uint64(len(c.Str)))
			h.Write([]byte(c.Str))
		case ConstNumber:
			writeUint(h, math.Float64bits(c.Num))
		case ConstBool:
			if c.B {
				writeUint(h, 1)
			} else {
				writeUint(h, 0)
			}
		}
	}
	writeUint(h, uint64(fn.NumParams))
	writeUint(h, uint64(len(fn.Upvalues)))
	for _, up := range fn.Upvalues {
		if up.InStack {
			writeUint(h, 1)
		} else {
			writeUint(h, 0)
		}
		writeUint(h, uint64(up.Index))
	}
	writeUint(h, uint64(len(fn.Children)))
	for _, child := range fn.Children {
		writeFunction(h, child)
	}
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
