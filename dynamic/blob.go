package dynamic

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record sizes in 32-bit words.
const (
	HeaderWords     = 8
	LightWords      = 20
	BillboardWords  = 16
	AvatarMetaWords = 4

	// minDataWords is the padded data size of an empty blob.
	minDataWords = 4
)

// ErrShortBlob is returned by ParseBlob when the input cannot hold the
// header or the data it announces.
var ErrShortBlob = errors.New("dynamic: scene-data blob too short")

// Header locates the sections of a scene-data blob. Offsets are in
// words from the start of the data area; an empty section has offset
// and count zero. DataWords is the logical data size, before padding.
type Header struct {
	LightsOffset      uint32
	LightsCount       uint32
	BillboardsOffset  uint32
	BillboardsCount   uint32
	AvatarMetaOffset  uint32
	AvatarMetaCount   uint32
	AvatarPixelOffset uint32
	DataWords         uint32
}

func (h Header) words() [HeaderWords]uint32 {
	return [HeaderWords]uint32{
		h.LightsOffset, h.LightsCount,
		h.BillboardsOffset, h.BillboardsCount,
		h.AvatarMetaOffset, h.AvatarMetaCount,
		h.AvatarPixelOffset, h.DataWords,
	}
}

// AvatarPixels returns the number of avatar pixel words.
func (h Header) AvatarPixels() uint32 {
	if h.AvatarMetaCount == 0 {
		return 0
	}
	return h.DataWords - h.AvatarPixelOffset
}

// Blob is the per-frame scene data: a header followed by the light,
// billboard, avatar-meta and avatar-pixel sections.
type Blob struct {
	Header Header
	// Data holds at least minDataWords words.
	Data []uint32
}

// Len returns the serialized size in bytes.
func (b *Blob) Len() int {
	return (HeaderWords + len(b.Data)) * 4
}

// Bytes returns the little-endian serialization: header, then data.
func (b *Blob) Bytes() []byte {
	buf := make([]byte, b.Len())
	le := binary.LittleEndian
	for i, w := range b.Header.words() {
		le.PutUint32(buf[i*4:], w)
	}
	off := HeaderWords * 4
	for i, w := range b.Data {
		le.PutUint32(buf[off+i*4:], w)
	}
	return buf
}

// Section returns the words of one record range of the data area.
func (b *Blob) Section(offset, count, stride uint32) []uint32 {
	end := offset + count*stride
	if count == 0 || int(end) > len(b.Data) {
		return nil
	}
	return b.Data[offset:end]
}

// Lights returns the packed light records.
func (b *Blob) Lights() []uint32 {
	return b.Section(b.Header.LightsOffset, b.Header.LightsCount, LightWords)
}

// Billboards returns the packed billboard records.
func (b *Blob) Billboards() []uint32 {
	return b.Section(b.Header.BillboardsOffset, b.Header.BillboardsCount, BillboardWords)
}

// AvatarMetas returns the packed avatar meta records.
func (b *Blob) AvatarMetas() []uint32 {
	return b.Section(b.Header.AvatarMetaOffset, b.Header.AvatarMetaCount, AvatarMetaWords)
}

// ParseBlob decodes a serialized blob and checks that every section it
// announces lies inside the data.
func ParseBlob(buf []byte) (*Blob, error) {
	if len(buf) < HeaderWords*4 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBlob, len(buf))
	}
	le := binary.LittleEndian
	var w [HeaderWords]uint32
	for i := range w {
		w[i] = le.Uint32(buf[i*4:])
	}
	h := Header{
		LightsOffset: w[0], LightsCount: w[1],
		BillboardsOffset: w[2], BillboardsCount: w[3],
		AvatarMetaOffset: w[4], AvatarMetaCount: w[5],
		AvatarPixelOffset: w[6], DataWords: w[7],
	}
	data := make([]uint32, (len(buf)-HeaderWords*4)/4)
	for i := range data {
		data[i] = le.Uint32(buf[(HeaderWords+i)*4:])
	}
	if int(h.DataWords) > len(data) {
		return nil, fmt.Errorf("%w: header announces %d words, have %d", ErrShortBlob, h.DataWords, len(data))
	}
	check := func(name string, off, count, stride uint32) error {
		if uint64(off)+uint64(count)*uint64(stride) > uint64(h.DataWords) {
			return fmt.Errorf("%w: %s section [%d+%d*%d] exceeds %d words", ErrShortBlob, name, off, count, stride, h.DataWords)
		}
		return nil
	}
	if err := errors.Join(
		check("lights", h.LightsOffset, h.LightsCount, LightWords),
		check("billboards", h.BillboardsOffset, h.BillboardsCount, BillboardWords),
		check("avatar meta", h.AvatarMetaOffset, h.AvatarMetaCount, AvatarMetaWords),
	); err != nil {
		return nil, err
	}
	return &Blob{Header: h, Data: data}, nil
}
