package wasifs

import "sort"

const (
	// FdStdin is the descriptor the guest reads standard input from.
	FdStdin = iota
	// FdStdout is the descriptor the guest writes standard output to.
	FdStdout
	// FdStderr is the descriptor the guest writes standard error to.
	FdStderr
	// fdFirstFree is where implicit allocation starts, so the stdio numbers
	// are only ever handed out after being released explicitly.
	fdFirstFree
)

// fdTable maps descriptor numbers to open entries.
//
// Allocation pops the most recently released number first and only then
// advances the counter. The device volume relies on this: releasing 0, 1, 2
// and opening three files yields 2, 1, 0 in that order.
type fdTable[E any] struct {
	entries  map[int]E
	released []int
	next     int
}

func newFDTable[E any]() *fdTable[E] {
	return &fdTable[E]{
		entries: make(map[int]E),
		next:    fdFirstFree,
	}
}

// insert stores e under the next available descriptor and returns it.
func (t *fdTable[E]) insert(e E) int {
	for len(t.released) > 0 {
		fd := t.released[len(t.released)-1]
		t.released = t.released[:len(t.released)-1]
		if _, taken := t.entries[fd]; !taken {
			t.entries[fd] = e
			return fd
		}
	}
	for {
		fd := t.next
		t.next++
		if _, taken := t.entries[fd]; !taken {
			t.entries[fd] = e
			return fd
		}
	}
}

// insertAt stores e under fd. It reports false if fd is negative or in use.
func (t *fdTable[E]) insertAt(fd int, e E) bool {
	if fd < 0 {
		return false
	}
	if _, taken := t.entries[fd]; taken {
		return false
	}
	t.entries[fd] = e
	if fd >= t.next {
		t.next = fd + 1
	}
	return true
}

func (t *fdTable[E]) lookup(fd int) (E, bool) {
	e, ok := t.entries[fd]
	return e, ok
}

// remove deletes fd and makes it the next number to be reused.
func (t *fdTable[E]) remove(fd int) (E, bool) {
	e, ok := t.entries[fd]
	if !ok {
		return e, false
	}
	delete(t.entries, fd)
	t.released = append(t.released, fd)
	return e, true
}

// release marks fds as reusable. They are handed out in reverse order.
func (t *fdTable[E]) release(fds ...int) {
	t.released = append(t.released, fds...)
}

// descriptors returns the open descriptor numbers in ascending order.
func (t *fdTable[E]) descriptors() []int {
	fds := make([]int, 0, len(t.entries))
	for fd := range t.entries {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}

func (t *fdTable[E]) len() int {
	return len(t.entries)
}
