package main

import (
	"fmt"
	"sync"

	"github.com/olcb-project/olcb"
)

// memoryStore is the simplest possible ConfigMemCallbacks backing: one
// byte slice per address space, held in RAM. A real node would back this
// with flash or an EEPROM; this is enough to exercise the protocol end
// to end without any particular storage hardware.
type memoryStore struct {
	mu     sync.Mutex
	spaces map[byte][]byte
	size   int
}

func newMemoryStore(size int) *memoryStore {
	return &memoryStore{spaces: make(map[byte][]byte), size: size}
}

func (s *memoryStore) spaceFor(space byte) []byte {
	buf, ok := s.spaces[space]
	if !ok {
		buf = make([]byte, s.size)
		s.spaces[space] = buf
	}
	return buf
}

func (s *memoryStore) read(_ *olcb.Node, space byte, offset uint32, out []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.spaceFor(space)
	if int(offset) >= len(buf) {
		return 0, nil
	}
	return copy(out, buf[offset:]), nil
}

func (s *memoryStore) write(_ *olcb.Node, space byte, offset uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.spaceFor(space)
	if int(offset)+len(data) > len(buf) {
		return fmt.Errorf("memstore: write past end of space 0x%02X", space)
	}
	copy(buf[offset:], data)
	return nil
}

func (s *memoryStore) callbacks() olcb.ConfigMemCallbacks {
	return olcb.ConfigMemCallbacks{
		Read:  s.read,
		Write: s.write,
		UniqueID: func(n *olcb.Node) [6]byte {
			var id [6]byte
			v := n.ID
			for i := 5; i >= 0; i-- {
				id[i] = byte(v)
				v >>= 8
			}
			return id
		},
	}
}
