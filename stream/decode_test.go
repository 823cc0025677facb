package stream

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDecode_ReportedCodePage(t *testing.T) {
	// "Команда" in Windows-1251.
	data := []byte{0xCA, 0xEE, 0xEC, 0xE0, 0xED, 0xE4, 0xE0}
	assert.Equal(t, "Команда", decode(data, "ANSI_1251"))
}

func TestDecode_FallsBackToUTF8(t *testing.T) {
	assert.Equal(t, "Command: LINE", decode([]byte("Command: LINE"), ""))
	assert.Equal(t, "Команда", decode([]byte("Команда"), "ANSI_936"))
}

func TestDecode_InvalidBytesAreLossyNotFatal(t *testing.T) {
	data := append([]byte("ok "), 0xFF, 0xFE)
	text := decode(data, "")
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "ok ")
}

func TestDecode_CodePageNameNormalized(t *testing.T) {
	data := []byte{0xE4} // "ä" in Windows-1252
	assert.Equal(t, "ä", decode(data, " ansi_1252 "))
}
