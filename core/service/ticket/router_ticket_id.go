package ticket

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"query_router/core/domain"
)

const idTimestampLayout = "20060102150405"

// suffixes hands out 8-hex-digit ticket suffixes. Each one is a bijective
// scramble of a per-process counter, so a process never repeats a suffix
// within 2^32 ids; the uuid-derived salt and start keep processes apart.
type suffixes struct {
	salt    uint32
	counter atomic.Uint32
}

func newSuffixes() *suffixes {
	u := uuid.New()
	s := &suffixes{salt: binary.BigEndian.Uint32(u[0:4])}
	s.counter.Store(binary.BigEndian.Uint32(u[4:8]))
	return s
}

func (s *suffixes) next() string {
	n := s.counter.Add(1)
	v := bits.RotateLeft32(n*0x9E3779B1, 13) ^ s.salt
	return fmt.Sprintf("%08X", v)
}

var defaultSuffixes = newSuffixes()

// NewTicketID returns {channel}-{urgency}-{timestamp}-{8 hex chars}. The
// format is for humans; nothing parses it.
func NewTicketID(channel domain.Channel, urgency domain.Urgency, now time.Time) string {
	var b strings.Builder
	b.Grow(32)
	b.WriteString(domain.Channel(strings.ToLower(string(channel))).Prefix())
	b.WriteByte('-')
	b.WriteString(domain.Urgency(strings.ToLower(string(urgency))).Prefix())
	b.WriteByte('-')
	b.WriteString(now.Format(idTimestampLayout))
	b.WriteByte('-')
	b.WriteString(defaultSuffixes.next())
	return b.String()
}
