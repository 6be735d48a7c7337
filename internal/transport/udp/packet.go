// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

/*
Packet layout (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |     Count     |        Uniforms         |
|      (uint32)     |  (int64, ns, epoch)   |    (uint16)   |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed prefix before the uniform payload.
const HeaderSize = 4 + 8 + 2

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Values    []float32
}

// Encode writes one packet into buf, replacing its contents.
func Encode(buf *bytes.Buffer, seq uint32, ts time.Time, values []float32) error {
	if len(values) > 0xffff {
		return fmt.Errorf("too many values for one packet: %d", len(values))
	}
	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, ts.UnixNano())
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(values)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, values)
	}
	return err
}

// Decode parses a datagram produced by Encode.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, errors.New("short packet")
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12]))),
	}
	n := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("packet length %d does not match count %d", len(data), n)
	}
	p.Values = make([]float32, n)
	if err := binary.Read(bytes.NewReader(data[HeaderSize:]), binary.BigEndian, p.Values); err != nil {
		return Packet{}, err
	}
	return p, nil
}
