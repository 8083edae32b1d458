package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appconfig "watch-reward-system/config"
)

func TestFormatPoints(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-2500:   "-2,500",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatPoints(in))
	}
}

func TestPassthroughResolver(t *testing.T) {
	var r PassthroughResolver
	url, err := r.ResolveMediaURL(context.Background(), "https://cdn.example/v.mp4")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/v.mp4", url)

	_, err = r.ResolveMediaURL(context.Background(), "r2://videos/a.mp4")
	require.Error(t, err)
}

func TestR2Client_Presign(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	c, err := NewR2Client(context.Background(), appconfig.R2Config{
		AccountID:       "acct123",
		AccessKeyID:     "AKIDEXAMPLE",
		AccessKeySecret: "secret",
		Bucket:          "media",
		URLTTL:          15 * time.Minute,
	})
	require.NoError(t, err)

	url, err := c.ResolveMediaURL(context.Background(), "r2://videos/intro.mp4")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://acct123.r2.cloudflarestorage.com/media/videos/intro.mp4?"), url)
	require.Contains(t, url, "X-Amz-Signature=")
	require.Contains(t, url, "X-Amz-Expires=900")

	external, err := c.ResolveMediaURL(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	require.Equal(t, "https://youtu.be/abc", external)

	_, err = c.ResolveMediaURL(context.Background(), "r2://")
	require.Error(t, err)
}

func TestR2Client_CDN(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	c, err := NewR2Client(context.Background(), appconfig.R2Config{
		AccountID:       "acct123",
		AccessKeyID:     "AKIDEXAMPLE",
		AccessKeySecret: "secret",
		Bucket:          "media",
		CDNBaseURL:      "https://media.example.com/",
	})
	require.NoError(t, err)

	url, err := c.ResolveMediaURL(context.Background(), "r2://videos/intro.mp4")
	require.NoError(t, err)
	require.Equal(t, "https://media.example.com/videos/intro.mp4", url)
}
