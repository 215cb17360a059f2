package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlobTarget(t *testing.T) {
	target := ParseBlobTarget("conn", "archive")
	assert.Equal(t, "archive", target.Container)
	assert.Equal(t, "", target.Prefix)
	assert.Equal(t, "a.txt", target.BlobName("a.txt"))

	target = ParseBlobTarget("conn", "/archive/2024/q1/")
	assert.Equal(t, "archive", target.Container)
	assert.Equal(t, "2024/q1", target.Prefix)
	assert.Equal(t, "2024/q1/a.txt", target.BlobName("a.txt"))
}

func TestEncodingRoundTrip(t *testing.T) {
	binary := []byte{0x00, 0xff, 0x10, 0x80}

	encoded := EncodingBase64.Encode(binary)
	decoded, err := EncodingBase64.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, binary, decoded)

	text, err := EncodingText.Decode("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", EncodingText.Encode(text))
}

func TestEncodingInvalidBase64(t *testing.T) {
	_, err := EncodingBase64.Decode("not base64!")
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestFilterPrefix(t *testing.T) {
	entries := []FileEntry{
		{Name: "."},
		{Name: ".."},
		{Name: "2023-q4.csv"},
		{Name: "2024-q1.csv"},
		{Name: "notes.txt"},
	}

	assert.Len(t, FilterPrefix(entries, ""), 3)
	assert.Equal(t, []FileEntry{{Name: "2024-q1.csv"}}, FilterPrefix(entries, "2024"))

	none := FilterPrefix(entries, "zzz")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRootedPath(t *testing.T) {
	assert.Equal(t, "/docs/reports/a.txt", RootedPath("docs", "/reports", "a.txt"))
	assert.Equal(t, "/docs", RootedPath("docs", "", ""))
	assert.Equal(t, "/docs/a.txt", RootedPath("docs/", "a.txt"))
}
