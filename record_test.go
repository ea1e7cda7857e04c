package shutter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIndex(t *testing.T) {
	records := []Record{
		{FilePath: PendingPath, DisplayPath: "file:///inbox/b.jpg", State: Pending, ID: 3},
		{FilePath: "1730000000002.jpeg", DisplayPath: "file:///inbox/b.jpg", ID: 2},
		{FilePath: "1730000000001.jpeg", DisplayPath: "file:///inbox/a.jpg", ID: 1},
	}

	value, err := EncodeIndex(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"filePath":"1730000000002.jpeg","displayPath":"file:///inbox/b.jpg"},
		{"filePath":"1730000000001.jpeg","displayPath":"file:///inbox/a.jpg"}
	]`, value)
}

func TestEncodeIndex_WritesStoredDisplayPath(t *testing.T) {
	records := []Record{
		{FilePath: "2.jpeg", DisplayPath: "data:image/jpeg;base64,AAAA", StoredPath: "file:///inbox/b.jpg"},
		{FilePath: "1.jpeg", DisplayPath: "file:///inbox/a.jpg"},
	}

	value, err := EncodeIndex(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"filePath":"2.jpeg","displayPath":"file:///inbox/b.jpg"},
		{"filePath":"1.jpeg","displayPath":"file:///inbox/a.jpg"}
	]`, value)
	assert.Equal(t, "file:///inbox/b.jpg", records[0].Stored())
	assert.Equal(t, "file:///inbox/a.jpg", records[1].Stored())
}

func TestEncodeIndex_Empty(t *testing.T) {
	value, err := EncodeIndex(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", value)
}

func TestDecodeIndex(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []string
		wantErr bool
	}{
		{name: "empty array", value: "[]", want: []string{}},
		{name: "null", value: "null", want: []string{}},
		{
			name:  "newest first",
			value: `[{"filePath":"2.jpeg","displayPath":"x"},{"filePath":"1.jpeg","displayPath":"y"}]`,
			want:  []string{"2.jpeg", "1.jpeg"},
		},
		{name: "garbage", value: "{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeIndex(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			paths := make([]string, 0, len(records))
			for _, r := range records {
				assert.Equal(t, Committed, r.State)
				paths = append(paths, r.FilePath)
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	in := []Record{
		{FilePath: "3.jpeg", DisplayPath: "data:image/jpeg;base64,AAAA"},
		{FilePath: "2.jpeg", DisplayPath: "/photos/2.jpeg"},
		{FilePath: "1.jpeg", DisplayPath: "file:///inbox/1.jpg"},
	}

	value, err := EncodeIndex(in)
	require.NoError(t, err)

	out, err := DecodeIndex(value)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
