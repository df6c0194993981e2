package nal

import (
	"errors"
	"fmt"
)

// SPSInfo is the subset of a Sequence Parameter Set this engine needs: just
// enough to populate a VideoInfo's width/height and the codec's
// profile/level fields, without decoding anything else.
type SPSInfo struct {
	ProfileIndication    byte
	ProfileCompatibility byte
	LevelIndication      byte
	Width                int
	Height               int
}

// SPSParser extracts SPSInfo from a raw SPS NAL unit (header byte
// included). Implementations are free to support arbitrary profiles; the
// built-in BaselineSPSParser only handles the common baseline/main,
// 4:2:0, single-slice-group, progressive case.
type SPSParser interface {
	ParseSPS(sps []byte) (SPSInfo, error)
}

// errUnsupportedSPS is returned by BaselineSPSParser for SPS features it
// does not attempt to decode: the high-profile chroma_format_idc/
// scaling-matrix block and interlaced (field) coding.
var errUnsupportedSPS = errors.New("nal: SPS uses a feature BaselineSPSParser does not parse")

// BaselineSPSParser is a conservative SPS parser good enough for
// baseline/main profile, 4:2:0, progressive-scan streams — the common case
// for browser-originated and conferencing H.264. Interlaced content or a
// profile carrying an explicit chroma_format_idc/scaling-matrix block
// returns errUnsupportedSPS; callers with fancier streams should supply
// their own SPSParser.
type BaselineSPSParser struct{}

// highProfilesWithChromaInfo lists profile_idc values whose SPS carries an
// extra chroma_format_idc/scaling-matrix block (H.264 7.3.2.1.1).
var highProfilesWithChromaInfo = map[byte]bool{
	100: true, 110: true, 122: true, 244: true, 44: true,
	83: true, 86: true, 118: true, 128: true, 138: true, 139: true, 134: true, 135: true,
}

// ParseSPS implements SPSParser.
func (BaselineSPSParser) ParseSPS(sps []byte) (SPSInfo, error) {
	if len(sps) < 4 {
		return SPSInfo{}, fmt.Errorf("nal: SPS too short")
	}

	info := SPSInfo{
		ProfileIndication:    sps[1],
		ProfileCompatibility: sps[2],
		LevelIndication:      sps[3],
	}

	br := newBitReader(removeEmulationPrevention(sps[1:]))
	profileIdc, err := br.readBits(8)
	if err != nil {
		return SPSInfo{}, err
	}
	if _, err := br.readBits(8); err != nil { // profile_compatibility flags
		return SPSInfo{}, err
	}
	if _, err := br.readBits(8); err != nil { // level_idc
		return SPSInfo{}, err
	}
	if _, err := br.readUE(); err != nil { // seq_parameter_set_id
		return SPSInfo{}, err
	}

	if highProfilesWithChromaInfo[byte(profileIdc)] {
		return SPSInfo{}, errUnsupportedSPS
	}

	if _, err := br.readUE(); err != nil { // log2_max_frame_num_minus4
		return SPSInfo{}, err
	}
	picOrderCntType, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}
	switch picOrderCntType {
	case 0:
		if _, err := br.readUE(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return SPSInfo{}, err
		}
	case 1:
		if _, err := br.readBit(); err != nil { // delta_pic_order_always_zero_flag
			return SPSInfo{}, err
		}
		if _, err := br.readSE(); err != nil { // offset_for_non_ref_pic
			return SPSInfo{}, err
		}
		if _, err := br.readSE(); err != nil { // offset_for_top_to_bottom_field
			return SPSInfo{}, err
		}
		n, err := br.readUE() // num_ref_frames_in_pic_order_cnt_cycle
		if err != nil {
			return SPSInfo{}, err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := br.readSE(); err != nil {
				return SPSInfo{}, err
			}
		}
	}

	if _, err := br.readUE(); err != nil { // max_num_ref_frames
		return SPSInfo{}, err
	}
	if _, err := br.readBit(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return SPSInfo{}, err
	}

	picWidthInMbsMinus1, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}
	picHeightInMapUnitsMinus1, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}
	frameMbsOnlyFlag, err := br.readBit()
	if err != nil {
		return SPSInfo{}, err
	}
	if frameMbsOnlyFlag == 0 {
		return SPSInfo{}, errUnsupportedSPS // interlaced: mb_adaptive_frame_field_flag follows
	}
	if _, err := br.readBit(); err != nil { // direct_8x8_inference_flag
		return SPSInfo{}, err
	}
	frameCroppingFlag, err := br.readBit()
	if err != nil {
		return SPSInfo{}, err
	}

	var cropLeft, cropRight, cropTop, cropBottom uint32
	if frameCroppingFlag == 1 {
		if cropLeft, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropRight, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropTop, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropBottom, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
	}

	width := int(picWidthInMbsMinus1+1) * 16
	height := int(picHeightInMapUnitsMinus1+1) * 16 * int(2-frameMbsOnlyFlag)

	// 4:2:0 crop units, assumed for every profile this parser accepts.
	const cropUnitX, cropUnitY = 2, 2
	width -= int(cropLeft+cropRight) * cropUnitX
	height -= int(cropTop+cropBottom) * cropUnitY * int(2-frameMbsOnlyFlag)

	info.Width = width
	info.Height = height
	return info, nil
}

// removeEmulationPrevention strips the 0x03 emulation-prevention byte that
// follows any 0x00 0x00 pair in an RBSP, yielding the raw bit sequence the
// exp-Golomb reader expects.
func removeEmulationPrevention(nal []byte) []byte {
	out := make([]byte, 0, len(nal))
	zeros := 0
	for _, b := range nal {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// bitReader reads individual bits and Exp-Golomb-coded values (ue(v)/se(v))
// from a byte slice, most-significant-bit first.
type bitReader struct {
	data   []byte
	bitPos int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) readBit() (uint32, error) {
	byteIdx := r.bitPos / 8
	if byteIdx >= len(r.data) {
		return 0, fmt.Errorf("nal: SPS bitstream exhausted")
	}
	bitOffset := uint(7 - r.bitPos%8)
	bit := (r.data[byteIdx] >> bitOffset) & 1
	r.bitPos++
	return uint32(bit), nil
}

func (r *bitReader) readBits(n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// readUE reads an unsigned Exp-Golomb-coded value: count leading zero
// bits, read that many more bits, the value is (1<<leadingZeros)-1 plus
// those bits.
func (r *bitReader) readUE() (uint32, error) {
	leadingZeros := 0
	for {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		leadingZeros++
		if leadingZeros > 32 {
			return 0, fmt.Errorf("nal: implausible Exp-Golomb prefix")
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	suffix, err := r.readBits(leadingZeros)
	if err != nil {
		return 0, err
	}
	return (1 << uint(leadingZeros)) - 1 + suffix, nil
}

// readSE reads a signed Exp-Golomb-coded value, mapping the unsigned
// codeword per H.264's standard zig-zag (section 9.1.1).
func (r *bitReader) readSE() (int32, error) {
	ue, err := r.readUE()
	if err != nil {
		return 0, err
	}
	if ue%2 == 0 {
		return -int32(ue / 2), nil
	}
	return int32(ue+1) / 2, nil
}
