package nal

// UnitType is the H.264 nal_unit_type field (ITU-T H.264 Table 7-1).
type UnitType byte

const (
	UnitTypeUnspecified                       UnitType = 0
	UnitTypeSliceLayerWithoutPartitioningNonIdr UnitType = 1
	UnitTypeSliceDataPartitionA                UnitType = 2
	UnitTypeSliceDataPartitionB                UnitType = 3
	UnitTypeSliceDataPartitionC                UnitType = 4
	UnitTypeSliceLayerWithoutPartitioningIdr   UnitType = 5
	UnitTypeSEI                                UnitType = 6
	UnitTypeSeqParameterSet                    UnitType = 7
	UnitTypePicParameterSet                    UnitType = 8
	UnitTypeAccessUnitDelimiter                UnitType = 9
	UnitTypeEndOfSeq                           UnitType = 10
	UnitTypeEndOfStream                        UnitType = 11
	UnitTypeFillerData                         UnitType = 12
)

// Header decodes the one-byte H.264 NAL header: forbidden_zero_bit (bit 7,
// ignored), nal_ref_idc (bits 6-5), nal_unit_type (bits 4-0).
type Header struct {
	RefIDC byte
	Type   UnitType
}

// DecodeHeader reads the NAL header byte from the start of a NAL unit
// (the unit body, without any framing prefix).
func DecodeHeader(nal []byte) (Header, bool) {
	if len(nal) == 0 {
		return Header{}, false
	}
	b := nal[0]
	return Header{RefIDC: (b >> 5) & 0x3, Type: UnitType(b & 0x1F)}, true
}

// IsVideoCodingUnit reports whether t carries coded slice data (SPS/PPS and
// non-VCL units do not).
func (t UnitType) IsVideoCodingUnit() bool {
	switch t {
	case UnitTypeSliceLayerWithoutPartitioningNonIdr, UnitTypeSliceLayerWithoutPartitioningIdr:
		return true
	default:
		return false
	}
}

// IsVideoNALUnit reports whether nal (its header byte inspected) is one of
// the four unit types that carry decodable picture content: SPS, PPS, or
// a coded slice.
func IsVideoNALUnit(nalUnit []byte) bool {
	h, ok := DecodeHeader(nalUnit)
	if !ok {
		return false
	}
	switch h.Type {
	case UnitTypeSeqParameterSet, UnitTypePicParameterSet,
		UnitTypeSliceLayerWithoutPartitioningNonIdr, UnitTypeSliceLayerWithoutPartitioningIdr:
		return true
	default:
		return false
	}
}
