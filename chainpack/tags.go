package chainpack

// CP-binary wire tags, per spec section 6.1.
const (
	tagCompactUIntMax = 0x3F // 0x00..0x3F: compact UINT 0..63
	tagCompactIntBase = 0x40 // 0x40..0x7F: compact INT 0..63
	tagCompactIntMax  = 0x7F

	tagNull    = 0x80
	tagUInt    = 0x81
	tagInt     = 0x82
	tagDouble  = 0x83
	tagBoolOld = 0x84 // reserved, see tagFalse/tagTrue

	tagBlob                    = 0x85
	tagString                  = 0x86
	tagDateTimeEpochDeprecated = 0x87 // deprecated epoch-datetime tag: rejected, never emitted
	tagList                    = 0x88
	tagMap                     = 0x89
	tagIMap                    = 0x8A
	tagMeta                    = 0x8B
	tagDecimal                 = 0x8C
	tagDateTime                = 0x8D
	tagCString                 = 0x8E
	tagCStringEndDeprecated    = 0x8F // deprecated CStringEnd marker: rejected, never emitted

	tagFalse = 0xFD
	tagTrue  = 0xFE

	tagContainerEnd = 0xFF
)
