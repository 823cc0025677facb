package stream

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// codePages maps the endpoint's reported SYSCODEPAGE identifiers to the
// single-byte Windows code pages transcripts are written in. Identifiers
// outside this table (DBCS pages, unset values) fall through to UTF-8.
var codePages = map[string]*charmap.Charmap{
	"ANSI_874":  charmap.Windows874,
	"ANSI_1250": charmap.Windows1250,
	"ANSI_1251": charmap.Windows1251,
	"ANSI_1252": charmap.Windows1252,
	"ANSI_1253": charmap.Windows1253,
	"ANSI_1254": charmap.Windows1254,
	"ANSI_1255": charmap.Windows1255,
	"ANSI_1256": charmap.Windows1256,
	"ANSI_1257": charmap.Windows1257,
	"ANSI_1258": charmap.Windows1258,
}

// decode converts transcript bytes to text using the endpoint's reported
// code page when recognized, falling back to UTF-8 and finally to a lossy
// decode. Partial garbling is preferable to a hard failure.
func decode(data []byte, codePage string) string {
	if enc, ok := codePages[strings.ToUpper(strings.TrimSpace(codePage))]; ok {
		if text, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(text)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
