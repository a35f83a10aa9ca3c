// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"gotest.tools/v3/assert"
)

func TestMain(m *testing.M) {
	HideProgress = true
	os.Exit(m.Run())
}

func newServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write(content)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestDownloadRemote(t *testing.T) {
	content := []byte("fake cloud image")
	ts := newServer(t, content)

	t.Run("without cache", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "base.img")
		r, err := Download(context.Background(), local, ts.URL+"/base.img")
		assert.NilError(t, err)
		assert.Equal(t, StatusDownloaded, r.Status)

		got, err := os.ReadFile(local)
		assert.NilError(t, err)
		assert.DeepEqual(t, content, got)
	})

	t.Run("with cache", func(t *testing.T) {
		cacheDir := t.TempDir()
		url := ts.URL + "/base.img"

		local := filepath.Join(t.TempDir(), "base.img")
		r, err := Download(context.Background(), local, url, WithCacheDir(cacheDir))
		assert.NilError(t, err)
		assert.Equal(t, StatusDownloaded, r.Status)

		local2 := filepath.Join(t.TempDir(), "base.img")
		r, err = Download(context.Background(), local2, url, WithCacheDir(cacheDir))
		assert.NilError(t, err)
		assert.Equal(t, StatusUsedCache, r.Status)
		assert.Equal(t, filepath.Join(cacheDir, "download", "by-url-sha256", CacheKey(url), "data"), r.CachePath)
	})

	t.Run("existing local file is skipped", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "base.img")
		assert.NilError(t, os.WriteFile(local, []byte("already here"), 0o644))
		r, err := Download(context.Background(), local, ts.URL+"/base.img")
		assert.NilError(t, err)
		assert.Equal(t, StatusSkipped, r.Status)
	})
}

func TestDownloadRemoteDigest(t *testing.T) {
	content := []byte("fake cloud image")
	ts := newServer(t, content)
	good := digest.SHA256.FromBytes(content)
	bad := digest.SHA256.FromString("something else")

	local := filepath.Join(t.TempDir(), "base.img")
	r, err := Download(context.Background(), local, ts.URL+"/base.img", WithExpectedDigest(good))
	assert.NilError(t, err)
	assert.Assert(t, r.ValidatedDigest)

	local2 := filepath.Join(t.TempDir(), "base.img")
	_, err = Download(context.Background(), local2, ts.URL+"/base.img", WithExpectedDigest(bad))
	assert.ErrorContains(t, err, "expected digest")

	_, statErr := os.Stat(local2)
	assert.Assert(t, os.IsNotExist(statErr), "no partial file on digest mismatch")
}

func TestDownloadLocal(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "base.img")
	assert.NilError(t, os.WriteFile(src, []byte("local image"), 0o644))

	local := filepath.Join(t.TempDir(), "base.img")
	r, err := Download(context.Background(), local, src)
	assert.NilError(t, err)
	assert.Equal(t, StatusDownloaded, r.Status)

	got, err := os.ReadFile(local)
	assert.NilError(t, err)
	assert.Equal(t, "local image", string(got))
}

func TestDownloadHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	local := filepath.Join(t.TempDir(), "base.img")
	_, err := Download(context.Background(), local, ts.URL+"/missing.img")
	assert.ErrorContains(t, err, "expected HTTP status")
}

func TestIsLocal(t *testing.T) {
	assert.Assert(t, IsLocal("/data/base.img"))
	assert.Assert(t, IsLocal("file:///data/base.img"))
	assert.Assert(t, IsLocal("./base.img"))
	assert.Assert(t, !IsLocal("https://cloud-images.ubuntu.com/jammy.img"))
}
