// Package arena provides the link-scoped allocator named in spec.md's
// external interfaces and design notes: one arena per link, released en
// masse when the link finishes rather than piece by piece. The synthetic
// sections in pkg/synth do not allocate from it; they use ordinary Go
// slices, and only Entropy is called from there. It is backed by an anonymous mmap
// region via golang.org/x/sys/unix, grounded on xyproto-vibe67's use of
// that module for low-level OS interaction.
package arena

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const chunkSize = 4 << 20 // 4 MiB

// Arena hands out byte slices backed by mmap'd chunks. It is not safe for
// concurrent use; callers that parallelize (build-id hashing) allocate
// their chunk buffers up front, outside the parallel section.
type Arena struct {
	chunks [][]byte
	cur    []byte
	used   int
}

func New() *Arena {
	return &Arena{}
}

// Alloc returns a zeroed byte slice of length n, aligned to align bytes
// (align must be a power of two, 0 meaning no particular alignment beyond
// the mmap page size already mmap gives every chunk).
func (a *Arena) Alloc(n int, align int) []byte {
	if n == 0 {
		return nil
	}
	if align > 1 {
		pad := (-a.used) & (align - 1)
		a.used += pad
	}
	if a.cur == nil || a.used+n > len(a.cur) {
		size := chunkSize
		if n > size {
			size = n
		}
		buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			panic(fmt.Errorf("arena: mmap %d bytes: %w", size, err))
		}
		a.chunks = append(a.chunks, buf)
		a.cur = buf
		a.used = 0
	}
	out := a.cur[a.used : a.used+n]
	a.used += n
	return out
}

// Release unmaps every chunk this arena owns. Nothing may reference memory
// returned by Alloc after Release; this mirrors spec.md §5's "releases
// happen en masse when the link finishes; no per-entry destruction is
// required".
func (a *Arena) Release() error {
	var firstErr error
	for _, c := range a.chunks {
		if err := unix.Munmap(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks = nil
	a.cur = nil
	a.used = 0
	return firstErr
}

// Entropy reads n bytes of OS randomness via getrandom(2), used by the
// UUID build-id kind (spec.md §4.10). Per spec.md §7, failure here is
// fatal.
func Entropy(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := unix.Getrandom(buf[got:], 0)
		if err != nil {
			return nil, fmt.Errorf("arena: getrandom: %w", err)
		}
		if m == 0 {
			return nil, fmt.Errorf("arena: getrandom returned 0 bytes")
		}
		got += m
	}
	return buf, nil
}
