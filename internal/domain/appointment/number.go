package appointment

import (
	"crypto/rand"
	"io"
	"strconv"
	"sync"
	"time"
)

const (
	numberPrefix    = "APT-"
	numberSuffixLen = 9
	base36          = "0123456789abcdefghijklmnopqrstuvwxyz"

	// bytes at or above this bound are redrawn so every digit is equally likely
	unbiasedBound = 256 - 256%len(base36)
)

// NumberSource hands out appointment numbers. Numbers are practically but
// not guaranteed unique; the unique index on appointment_number decides.
type NumberSource interface {
	Next() string
}

// NumberGenerator builds numbers of the form APT-<epoch ms>-<9 base-36 chars>.
type NumberGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand io.Reader
	buf  [numberSuffixLen]byte
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.Reader}
}

// NewNumberGeneratorWith uses a fixed clock and random source.
func NewNumberGeneratorWith(now func() time.Time, r io.Reader) *NumberGenerator {
	return &NumberGenerator{now: now, rand: r}
}

func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	suffix := make([]byte, 0, numberSuffixLen)
	for len(suffix) < numberSuffixLen {
		draw := g.buf[:numberSuffixLen-len(suffix)]
		if _, err := io.ReadFull(g.rand, draw); err != nil {
			// crypto/rand does not fail on supported platforms
			panic("appointment: read random suffix: " + err.Error())
		}
		for _, b := range draw {
			if int(b) < unbiasedBound {
				suffix = append(suffix, base36[int(b)%len(base36)])
			}
		}
	}
	return numberPrefix + strconv.FormatInt(g.now().UnixMilli(), 10) + "-" + string(suffix)
}
