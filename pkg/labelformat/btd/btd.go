// Package btd reads and writes the native binary annotation snapshot.
//
// All integers are big endian.
//
//	"BTD"                  3 bytes magic
//	version                u8 (always 1)
//	linked video filename  string
//	id counter             u32
//	category count         u32
//	per category:
//	  name                 string
//	  track count          u32
//	  per track:
//	    id                 u32
//	    box count          u32
//	    per box:
//	      type             u8 (1 = single, 2 = key)
//	      frame            u32
//	      left, top        i32, i32
//	      right, bottom    i32, i32 (inclusive, so right = x + width - 1)
//
// A string is a u32 byte length followed by UTF-16BE code units.
// A length of 0xFFFFFFFF is the null string, which we treat as "".
package btd

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const (
	Magic   = "BTD"
	Version = 1

	nullStringLength = 0xFFFFFFFF

	// Upper bound on a single string, to avoid allocating garbage on a corrupt file
	maxStringBytes = 1 << 20
)

var utf16be encoding.Encoding = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
