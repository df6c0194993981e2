package ebml

// Canonical Matroska/WebM element IDs, encoded marker bit included.
const (
	EBML      ID = 0x1A45DFA3
	EBMLVersion        ID = 0x4286
	EBMLReadVersion    ID = 0x42F7
	EBMLMaxIDLength    ID = 0x42F2
	EBMLMaxSizeLength  ID = 0x42F3
	DocType            ID = 0x4282
	DocTypeVersion     ID = 0x4287
	DocTypeReadVersion ID = 0x4285

	Segment ID = 0x18538067

	SeekHead    ID = 0x114D9B74
	Seek        ID = 0x4DBB
	SeekID      ID = 0x53AB
	SeekPosition ID = 0x53AC

	Info            ID = 0x1549A966
	TimestampScale  ID = 0x2AD7B1
	Duration        ID = 0x4489
	DateUTC         ID = 0x4461
	WritingApp      ID = 0x4D80
	MuxingApp       ID = 0x5741

	Tracks     ID = 0x1654AE6B
	TrackEntry ID = 0xAE

	TrackNumber  ID = 0xD7
	TrackUID     ID = 0x73C5
	TrackType    ID = 0x83
	CodecID      ID = 0x86
	CodecPrivate ID = 0x63A2

	Video         ID = 0xE0
	PixelWidth    ID = 0xB0
	PixelHeight   ID = 0xBA
	FlagInterlaced ID = 0x9A

	Audio             ID = 0xE1
	SamplingFrequency ID = 0xB5
	Channels          ID = 0x9F
	BitDepth          ID = 0x6264

	Cluster     ID = 0x1F43B675
	Timestamp   ID = 0xE7
	SimpleBlock ID = 0xA3

	BlockGroup    ID = 0xA0
	Block         ID = 0xA1
	BlockDuration ID = 0x9B

	Cues               ID = 0x1C53BB6B
	CuePoint           ID = 0xBB
	CueTime            ID = 0xB3
	CueTrackPositions  ID = 0xB7
	CueTrack           ID = 0xF7
	CueClusterPosition ID = 0xF1

	Chapters    ID = 0x1043A770
	Attachments ID = 0x1941A469
	Tags        ID = 0x1254C367

	AttachedFile  ID = 0x61A7
	FileName      ID = 0x466E
	FileMimeType  ID = 0x4660
	FileData      ID = 0x465C
	FileUID       ID = 0x46AE
)

// TrackType values as they appear in the TrackType element.
const (
	TrackTypeVideo    uint64 = 1
	TrackTypeAudio    uint64 = 2
	TrackTypeSubtitle uint64 = 17
)
