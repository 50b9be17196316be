package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want MediaKind
	}{
		{"image/jpeg", KindImage},
		{"video/mp4", KindVideo},
		{"application/vnd.apple.mpegurl", KindVideo},
		{"audio/mpegurl", KindVideo},
		{"audio/mpeg", KindAudio},
		{" IMAGE/PNG ", KindImage},
		{"application/pdf", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromMIME(tt.mime))
		})
	}
}

func TestKindFromExtension(t *testing.T) {
	assert.Equal(t, KindImage, KindFromExtension(".JPG"))
	assert.Equal(t, KindImage, KindFromExtension("webp"))
	assert.Equal(t, KindVideo, KindFromExtension(".ts"))
	assert.Equal(t, KindAudio, KindFromExtension(".m4a"))
	assert.Equal(t, KindUnknown, KindFromExtension(".part"))
	assert.Equal(t, KindUnknown, KindFromExtension(""))
}

func TestMediaKindText(t *testing.T) {
	for _, k := range Kinds {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var back MediaKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}

	var k MediaKind
	require.NoError(t, k.UnmarshalText([]byte("hologram")))
	assert.Equal(t, KindUnknown, k)

	assert.Equal(t, "Pictures", KindImage.FolderName())
	assert.Equal(t, "Other", KindUnknown.FolderName())
}

func TestDescriptorSegmented(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want bool
		ext  string
	}{
		{name: "mime", d: Descriptor{MIME: "application/vnd.apple.mpegurl", Extension: "m3u8"}, want: true, ext: "mp4"},
		{name: "url path", d: Descriptor{DownloadURL: "https://cdn.example.com/a/master.m3u8?sig=1"}, want: true, ext: "mp4"},
		{name: "query only", d: Descriptor{DownloadURL: "https://cdn.example.com/a.mp4?next=x.m3u8", Extension: "mp4"}, want: false, ext: "mp4"},
		{name: "no extension", d: Descriptor{DownloadURL: "https://cdn.example.com/blob"}, want: false, ext: "bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.IsSegmented())
			assert.Equal(t, tt.ext, tt.d.EffectiveExtension())
		})
	}
}

func TestTimeFromEpoch(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	assert.Equal(t, want, TimeFromEpoch(1700000000))
	assert.Equal(t, want, TimeFromEpoch(1700000000000))
	assert.Equal(t, want, Descriptor{CreatedAt: 1700000000}.CreatedTime())
}

func TestDescriptorIdentity(t *testing.T) {
	d := Descriptor{ID: "42", Kind: KindVideo, IsPreview: true}
	assert.Equal(t, ItemIdentity{CatalogID: "42", Kind: KindVideo, IsPreview: true}, d.Identity())

	data, err := json.Marshal(d.Identity())
	require.NoError(t, err)
	assert.JSONEq(t, `{"catalogId":"42","kind":"video","isPreview":true}`, string(data))
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 9797, cfg.Server.Port)
	assert.Equal(t, MuxToolFFmpeg, cfg.Download.MuxTool)
	assert.Equal(t, DigestMD5, cfg.Download.Digest)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.EmptyPageDelay.Std())
	assert.NotNil(t, cfg.Platform.Sources)
}

func TestValidMode(t *testing.T) {
	assert.Equal(t, ModeNormal, DefaultConfig().Platform.Mode)
	for _, m := range Modes {
		assert.True(t, ValidMode(m), m)
	}
	assert.False(t, ValidMode(""))
	assert.False(t, ValidMode("Timeline"))
}
