// Package loopdev hands out loop devices from a configured range so
// concurrent builds never contend for the same device.
package loopdev

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const devPattern = "/dev/loop%d"

// ErrNoFreeDevice is returned when every device in the range is busy.
var ErrNoFreeDevice = errors.New("no free loop device")

// Pool tracks which loop devices in a range are in use.
type Pool struct {
	mu    sync.Mutex
	first int
	last  int
	busy  map[int]bool
}

// NewPool creates a pool over /dev/loop<first>../dev/loop<last>.
func NewPool(first, last int) *Pool {
	if last < first {
		last = first
	}
	return &Pool{first: first, last: last, busy: make(map[int]bool)}
}

// Acquire reserves a free loop device and returns its path.
func (p *Pool) Acquire() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for n := p.first; n <= p.last; n++ {
		if !p.busy[n] {
			p.busy[n] = true
			return fmt.Sprintf(devPattern, n), nil
		}
	}
	return "", ErrNoFreeDevice
}

// Release returns a previously acquired device to the pool.
func (p *Pool) Release(dev string) error {
	suffix, ok := strings.CutPrefix(dev, "/dev/loop")
	if !ok {
		return fmt.Errorf("unknown loop device: %s", dev)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < p.first || n > p.last {
		return fmt.Errorf("unknown loop device: %s", dev)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.busy[n] {
		return fmt.Errorf("attempt to release free loop device: %s", dev)
	}
	p.busy[n] = false
	return nil
}
