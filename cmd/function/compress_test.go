package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/storage"
)

const listing = "所在地: 東京都港区芝公園4-2-8\n賃料: 8万円\n間取り: 1LDK\n眺望の良い高層階の住戸です。"

func TestCompressObject(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket("uploads")
	require.NoError(t, bucket.Write(ctx, "2026/listing.txt", []byte(listing), "text/plain"))

	out, err := compressObject(ctx, bucket, "2026/listing.txt", compression.DefaultPolicy(45))
	require.NoError(t, err)
	assert.Equal(t, "compressed/2026/listing.txt", out)

	data, err := bucket.Read(ctx, out)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(string(data))), 45)
	assert.Contains(t, string(data), "賃料: 8万円")

	// A second delivery of the same event leaves the output alone
	out, err = compressObject(ctx, bucket, "2026/listing.txt", compression.DefaultPolicy(1000))
	require.NoError(t, err)
	assert.Equal(t, "compressed/2026/listing.txt", out)
	again, err := bucket.Read(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestCompressObject_Skips(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket("uploads")
	require.NoError(t, bucket.Write(ctx, "compressed/a.txt", []byte(listing), "text/plain"))
	require.NoError(t, bucket.Write(ctx, "photo.jpg", []byte{0xff, 0xd8}, "image/jpeg"))
	require.NoError(t, bucket.Write(ctx, "empty.txt", []byte("  \n"), "text/plain"))

	for _, name := range []string{"compressed/a.txt", "photo.jpg", "empty.txt"} {
		out, err := compressObject(ctx, bucket, name, compression.DefaultPolicy(100))
		require.NoError(t, err, name)
		assert.Empty(t, out, name)
	}

	objects, _, err := bucket.List(ctx, "compressed/", "")
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestCompressObject_Errors(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket("uploads")

	_, err := compressObject(ctx, bucket, "missing.txt", compression.DefaultPolicy(100))
	assert.ErrorIs(t, err, storage.ErrObjectNotExist)

	require.NoError(t, bucket.Write(ctx, "big.txt", []byte(listing), "text/plain"))
	_, err = compressObject(ctx, bucket, "big.txt", compression.DefaultPolicy(5))
	var overBudget *compression.OverBudgetError
	assert.ErrorAs(t, err, &overBudget)
}
