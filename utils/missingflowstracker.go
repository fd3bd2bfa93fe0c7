package utils

import (
	"fmt"
	"net/netip"
	"sync"
)

// MissingFlowsTracker follows the sequence numbers of each exporter to
// estimate how many flows (v5) or packets (v9) never arrived.
type MissingFlowsTracker struct {
	counters   map[string]int64 // counter key is based on source addr and sourceId/engineType/engineId
	countersMu *sync.RWMutex

	maxNegativeSequenceDifference int
}

func NewMissingFlowsTracker(maxNegativeSequenceDifference int) *MissingFlowsTracker {
	return &MissingFlowsTracker{
		counters:                      make(map[string]int64),
		countersMu:                    &sync.RWMutex{},
		maxNegativeSequenceDifference: maxNegativeSequenceDifference,
	}
}

// NetFlow5Key identifies a v5 export engine: the sequence counts flows.
func NetFlow5Key(exporter netip.AddrPort, engineType, engineId uint8) string {
	return fmt.Sprintf("%s|%d|%d", exporter.Addr().Unmap().String(), engineType, engineId)
}

// NetFlow9Key identifies a v9 exporter: the sequence counts packets.
func NetFlow9Key(exporter netip.AddrPort, sourceId uint32) string {
	return fmt.Sprintf("%s|%d", exporter.Addr().Unmap().String(), sourceId)
}

// CountMissing records a datagram carrying count elements and returns how
// many elements are missing so far for key, and 1 when the exporter restarted
// its sequence.
func (s *MissingFlowsTracker) CountMissing(key string, seqnum uint32, count uint16) (int64, int) {
	return s.countMissing(key, seqnum, count)
}

func (s *MissingFlowsTracker) countMissing(key string, seqnum uint32, flows uint16) (int64, int) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	if _, ok := s.counters[key]; !ok {
		s.counters[key] = int64(seqnum)
	} else {
		s.counters[key] += int64(flows)
	}
	missingElements := int64(seqnum) - s.counters[key]

	// We assume there is a sequence number reset when the number of missing flows/packets is negative and high.
	// When this happens, we reset the counter to the current sequence number.
	if missingElements <= -int64(s.maxNegativeSequenceDifference) {
		s.counters[key] = int64(seqnum)
		return 0, 1
	}
	return missingElements, 0
}

// Forget drops the state of key.
func (s *MissingFlowsTracker) Forget(key string) {
	s.countersMu.Lock()
	delete(s.counters, key)
	s.countersMu.Unlock()
}
