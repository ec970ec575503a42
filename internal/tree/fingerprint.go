// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
)

// fingerprint identifies the state of a node's inputs. Two evaluations with
// the same fingerprint produce the same output, so the earlier output can be
// reused.
type fingerprint uint64

// digest accumulates length-prefixed fields so that adjacent values cannot
// collide ("ab"+"c" vs "a"+"bc").
type digest struct {
	h *xxhash.Digest
}

func newDigest() digest {
	return digest{h: xxhash.New()}
}

func (d digest) str(s string) {
	d.u64(uint64(len(s)))
	_, _ = d.h.WriteString(s)
}

func (d digest) u64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.h.Write(buf[:])
}

func (d digest) sum() fingerprint {
	return fingerprint(d.h.Sum64())
}

// sourceFingerprint hashes the path, size, mode and modification time of
// every entry below dir, following symlinked directories. Content is not
// read; editors always bump mtime.
func sourceFingerprint(dir string) (fingerprint, error) {
	d := newDigest()
	d.str(dir)
	if _, err := os.Stat(dir); err != nil {
		return 0, err
	}
	err := walkFollow(dir, func(rel string, info fs.FileInfo) error {
		d.str(rel)
		d.u64(uint64(info.Mode()))
		if !info.IsDir() {
			d.u64(uint64(info.Size()))
			d.u64(uint64(info.ModTime().UnixNano()))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return d.sum(), nil
}

// transformFingerprint combines a node's stable id with its inputs'
// fingerprints, in input order.
func transformFingerprint(id string, inputs []fingerprint) fingerprint {
	d := newDigest()
	d.str(id)
	d.u64(uint64(len(inputs)))
	for _, in := range inputs {
		d.u64(uint64(in))
	}
	return d.sum()
}
