package runner

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	ntpPacketSize = 48
	// seconds between 1900-01-01 and 1970-01-01
	ntpEpochOffset = 2208988800

	ntpVersion    = 4
	ntpModeClient = 3
	ntpModeServer = 4
	ntpModeBcast  = 5
	ntpLeapAlarm  = 3
)

type ntpPacket struct {
	Settings       uint8 // leap indicator, version, mode
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      uint32
	RootDispersion uint32
	ReferenceID    uint32
	RefTimeSec     uint32
	RefTimeFrac    uint32
	OrigTimeSec    uint32
	OrigTimeFrac   uint32
	RxTimeSec      uint32
	RxTimeFrac     uint32
	TxTimeSec      uint32
	TxTimeFrac     uint32
}

func (p *ntpPacket) mode() uint8 { return p.Settings & 0x7 }
func (p *ntpPacket) leap() uint8 { return p.Settings >> 6 }

func (p *ntpPacket) marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalNTPPacket(data []byte) (*ntpPacket, error) {
	if len(data) < ntpPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedResponse, len(data))
	}
	var p ntpPacket
	if err := binary.Read(bytes.NewReader(data[:ntpPacketSize]), binary.BigEndian, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &p, nil
}

func toNTPTime(t time.Time) (sec, frac uint32) {
	secs := uint64(t.Unix()) + ntpEpochOffset
	f := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return uint32(secs), uint32(f)
}

// fromNTPTime assumes era 0 when the top bit is set and era 1 (after 2036) otherwise.
func fromNTPTime(sec, frac uint32) time.Time {
	secs := int64(sec) - ntpEpochOffset
	if sec&0x80000000 == 0 {
		secs += 1 << 32
	}
	nsec := (uint64(frac) * uint64(time.Second)) >> 32
	return time.Unix(secs, int64(nsec))
}
