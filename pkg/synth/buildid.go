package synth

import (
	"crypto/md5"
	"crypto/sha1"
	"debug/elf"
	"sync"

	"github.com/synthlink/sve/pkg/arena"
	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/elfabi"
)

const buildIDChunkSize = 1 << 20 // 1 MiB, per spec.md §4.10/§5

// xxHash64 constants, per the public xxHash64 specification (Yann
// Collet); hand-implemented here rather than imported since no xxHash
// module appears anywhere in the retrieved corpus.
var (
	xxPrime1 uint64 = 11400714785074694791
	xxPrime2 uint64 = 14029467366897019727
	xxPrime3 uint64 = 1609587929392839161
	xxPrime4 uint64 = 9650029242287828579
	xxPrime5 uint64 = 2870177450012600261
)

func xxhRotl64(x uint64, r uint) uint64 { return (x << r) | (x >> (64 - r)) }

func xxhRound(acc, input uint64) uint64 {
	acc += input * xxPrime2
	acc = xxhRotl64(acc, 31)
	return acc * xxPrime1
}

// xxHash64 implements the one-shot, seed-0 variant of xxHash64 over buf.
func xxHash64(buf []byte) uint64 {
	var h uint64
	n := len(buf)
	var i int

	if n >= 32 {
		v1 := xxPrime1 + xxPrime2
		v2 := xxPrime2
		v3 := uint64(0)
		v4 := -xxPrime1

		for ; i+32 <= n; i += 32 {
			v1 = xxhRound(v1, readU64(buf[i:]))
			v2 = xxhRound(v2, readU64(buf[i+8:]))
			v3 = xxhRound(v3, readU64(buf[i+16:]))
			v4 = xxhRound(v4, readU64(buf[i+24:]))
		}

		h = xxhRotl64(v1, 1) + xxhRotl64(v2, 7) + xxhRotl64(v3, 12) + xxhRotl64(v4, 18)
		h = (h ^ xxhRound(0, v1)) * xxPrime1 + xxPrime4
		h = (h ^ xxhRound(0, v2)) * xxPrime1 + xxPrime4
		h = (h ^ xxhRound(0, v3)) * xxPrime1 + xxPrime4
		h = (h ^ xxhRound(0, v4)) * xxPrime1 + xxPrime4
	} else {
		h = xxPrime5
	}

	h += uint64(n)

	for ; i+8 <= n; i += 8 {
		k1 := xxhRound(0, readU64(buf[i:]))
		h ^= k1
		h = xxhRotl64(h, 27)*xxPrime1 + xxPrime4
	}
	if i+4 <= n {
		h ^= uint64(readU32(buf[i:])) * xxPrime1
		h = xxhRotl64(h, 23)*xxPrime2 + xxPrime3
		i += 4
	}
	for ; i < n; i++ {
		h ^= uint64(buf[i]) * xxPrime5
		h = xxhRotl64(h, 11) * xxPrime1
	}

	h ^= h >> 33
	h *= xxPrime2
	h ^= h >> 29
	h *= xxPrime3
	h ^= h >> 32
	return h
}

func xxHash64Sum(buf []byte) []byte {
	out := make([]byte, 8)
	writeU64(out, xxHash64(buf))
	return out
}

func md5Sum(buf []byte) []byte {
	sum := md5.Sum(buf)
	return sum[:]
}

func sha1Sum(buf []byte) []byte {
	sum := sha1.Sum(buf)
	return sum[:]
}

// chunkedHash splits data into chunkSize pieces, hashes each in parallel
// with hashOne, then hashes the concatenation of those digests with the
// same function, per spec.md §4.10's "split into 1 MiB chunks, hash each
// chunk in parallel, then hash the concatenation of chunk hashes". This
// is the one place in this engine parallelism is mandated (spec.md §5).
func chunkedHash(data []byte, chunkSize int, hashOne func([]byte) []byte) []byte {
	if len(data) == 0 {
		return hashOne(nil)
	}
	numChunks := (len(data) + chunkSize - 1) / chunkSize
	digests := make([][]byte, numChunks)

	var wg sync.WaitGroup
	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		wg.Add(1)
		go func(idx, s, e int) {
			defer wg.Done()
			digests[idx] = hashOne(data[s:e])
		}(i, start, end)
	}
	wg.Wait()

	var concat []byte
	for _, d := range digests {
		concat = append(concat, d...)
	}
	return hashOne(concat)
}

// BuildIDSection is the build-id note (spec.md §4.10): a note of name
// "GNU" and type NT_GNU_BUILD_ID. Its content length is fixed by its
// kind, so Size is known at Finalize time, but for the hash-derived
// kinds the actual digest can only be computed once the whole output
// image exists — Compute is called by the (out-of-scope) file writer
// after serialization, following the same zero-then-patch idiom real
// linkers use since the note's own bytes are part of what gets hashed.
type BuildIDSection struct {
	Base

	kind     config.BuildIDKind
	hexBytes []byte
	descLen  int
	computed []byte
}

func buildIDDescLen(kind config.BuildIDKind, hex []byte) int {
	switch kind {
	case config.BuildIDFast:
		return 8
	case config.BuildIDMd5:
		return 16
	case config.BuildIDSha1:
		return 20
	case config.BuildIDUuid:
		return 16
	case config.BuildIDHexstring:
		return len(hex)
	default:
		return 0
	}
}

func NewBuildIDSection(kind config.BuildIDKind, hex []byte) *BuildIDSection {
	return &BuildIDSection{
		Base:     NewBase(".note.gnu.build-id", uint32(elf.SHT_NOTE), uint64(elf.SHF_ALLOC), 4, 0),
		kind:     kind,
		hexBytes: hex,
		descLen:  buildIDDescLen(kind, hex),
	}
}

func align4(n int) int { return (n + 3) &^ 3 }

func (b *BuildIDSection) Size() uint64 {
	if b.kind == config.BuildIDNone {
		return 0
	}
	return uint64(elfabi.NhdrSize + align4(4) + align4(b.descLen))
}

func (b *BuildIDSection) Empty() bool { return b.kind == config.BuildIDNone }

// Finalize resolves the kinds that don't depend on the final image:
// hexstring copies its explicit bytes, uuid draws OS entropy now (a
// failure here is fatal per spec.md §7). The hash-derived kinds (fast,
// md5, sha1) are left for Compute once the image buffer exists.
func (b *BuildIDSection) Finalize(ctx *Context) {
	if b.Finalized() {
		return
	}
	defer b.MarkFinalized()

	switch b.kind {
	case config.BuildIDHexstring:
		b.computed = b.hexBytes
	case config.BuildIDUuid:
		bytes, err := arena.Entropy(16)
		if err != nil {
			ctx.Sink.Fatalf("", 0, "build-id: entropy source failed: %v", err)
		}
		b.computed = bytes
	}
}

// Compute hashes the final serialized image (with this section's own
// descriptor bytes still zeroed) for the hash-derived build-id kinds.
// No-op for kinds already resolved in Finalize.
func (b *BuildIDSection) Compute(imageBuf []byte) {
	switch b.kind {
	case config.BuildIDFast:
		b.computed = chunkedHash(imageBuf, buildIDChunkSize, xxHash64Sum)
	case config.BuildIDMd5:
		b.computed = chunkedHash(imageBuf, buildIDChunkSize, md5Sum)
	case config.BuildIDSha1:
		b.computed = chunkedHash(imageBuf, buildIDChunkSize, sha1Sum)
	}
}

func (b *BuildIDSection) Write(ctx *Context, buf []byte) {
	if b.Empty() {
		return
	}
	writeU32(buf, 4)
	writeU32(buf[4:], uint32(b.descLen))
	writeU32(buf[8:], elfabi.NT_GNU_BUILD_ID)
	copy(buf[12:], "GNU\x00")

	descOff := elfabi.NhdrSize + align4(4)
	if len(b.computed) > 0 {
		copy(buf[descOff:], b.computed)
	}
}
