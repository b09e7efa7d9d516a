package ids

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

// epoch for the 41-bit timestamp part
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator hands out snowflake ids: 41 bits of milliseconds since epoch,
// 10 bits of node id and 12 bits of per-millisecond sequence.
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	seq      int64
	lastTSMS int64
	now      func() time.Time
}

func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNode {
		return nil, fmt.Errorf("node id %d out of range [0,%d]", nodeID, maxNode)
	}
	return &Generator{nodeID: nodeID, now: time.Now}, nil
}

var (
	defaultGen, _ = NewGenerator(1)
	defaultMu     sync.RWMutex
)

// SetNodeID replaces the process-wide generator. Call it once from main.
func SetNodeID(nodeID int64) error {
	g, err := NewGenerator(nodeID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGen = g
	defaultMu.Unlock()
	return nil
}

func Generate() int64 {
	defaultMu.RLock()
	g := defaultGen
	defaultMu.RUnlock()
	return g.Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().Sub(epoch).Milliseconds()
	if now < g.lastTSMS {
		// clock went backwards: keep issuing from the last timestamp
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// sequence exhausted, borrow the next millisecond
			now++
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	return (now&(1<<41-1))<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}
