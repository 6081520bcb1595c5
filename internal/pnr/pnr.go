// Package pnr issues passenger name records: fixed-width booking references.
package pnr

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
)

const (
	// Length is the number of characters in every PNR.
	Length = 10

	stampWidth   = 6
	counterWidth = 4
	counterSpace = 36 * 36 * 36 * 36
)

var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generator builds a PNR from the minute since epoch followed by a counter.
// The counter is shared by all calls and starts at a random offset, so two
// PNRs issued in the same minute differ unless more than 36^4 are issued in it.
type Generator struct {
	clock   clock.Clock
	counter atomic.Uint64
}

func NewGenerator(c clock.Clock) *Generator {
	if c == nil {
		c = clock.Real{}
	}
	g := &Generator{clock: c}
	g.counter.Store(randomSeed())
	return g
}

func (g *Generator) Next() string {
	minutes := int64(g.clock.Now().UTC().Sub(epoch) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	n := g.counter.Add(1) % counterSpace
	return pad(strconv.FormatInt(minutes, 36), stampWidth) + pad(strconv.FormatUint(n, 36), counterWidth)
}

// Valid reports whether s has the shape of a generated PNR.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func pad(s string, width int) string {
	s = strings.ToUpper(s)
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:]) % counterSpace
}
