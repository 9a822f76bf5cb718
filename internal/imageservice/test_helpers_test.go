package imageservice

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
)

type storedBlob struct {
	data     []byte
	mimeType string
}

// memoryBlobStore is an in-memory BlobStore.
type memoryBlobStore struct {
	mu       sync.Mutex
	blobs    map[int]storedBlob
	nextOID  uint32
	failWith error
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: make(map[int]storedBlob), nextOID: 16384}
}

func (m *memoryBlobStore) ReplaceImage(ctx context.Context, gameID int, data []byte, mimeType string) (datastore.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return datastore.StoredImage{}, m.failWith
	}
	m.blobs[gameID] = storedBlob{data: bytes.Clone(data), mimeType: mimeType}
	m.nextOID++
	return datastore.StoredImage{OID: m.nextOID, MimeType: mimeType, Size: len(data)}, nil
}

func (m *memoryBlobStore) ReadImage(ctx context.Context, gameID int) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[gameID]
	if !ok {
		return nil, "", errors.Newf("no image for game %d", gameID).Category(errors.CategoryNotFound).Build()
	}
	return bytes.Clone(b.data), b.mimeType, nil
}

func (m *memoryBlobStore) ClearImage(ctx context.Context, gameID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, gameID)
	return nil
}

func (m *memoryBlobStore) HasImage(ctx context.Context, gameID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[gameID]
	return ok, nil
}

func (m *memoryBlobStore) get(gameID int) (storedBlob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[gameID]
	return b, ok
}

// newTestService returns a service backed by an in-memory store and an
// httpmock transport.
func newTestService(t *testing.T, config Config) (*Service, *memoryBlobStore, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{DefaultTimeout: 5 * time.Second, Transport: transport})
	store := newMemoryBlobStore()
	return New(config, hc, store, nil), store, transport
}

// noiseImage returns an opaque image of random pixels, which compresses poorly.
func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// translucentImage returns an NRGBA image with a half transparent gradient.
func translucentImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0x80})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// encodeOpaqueRGBAPNG writes a PNG of colour type RGBA whose pixels are all
// opaque. png.Encode would store such an image as plain RGB.
func encodeOpaqueRGBAPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var raw bytes.Buffer
	for y := range h {
		raw.WriteByte(0) // no filter
		for x := range w {
			raw.Write([]byte{uint8(x), uint8(y), 0x40, 0xff})
		}
	}
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, err := zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolour with alpha

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	for _, chunk := range []struct {
		kind string
		data []byte
	}{{"IHDR", ihdr}, {"IDAT", idat.Bytes()}, {"IEND", nil}} {
		var header [8]byte
		binary.BigEndian.PutUint32(header[:4], uint32(len(chunk.data)))
		copy(header[4:], chunk.kind)
		out.Write(header[:])
		out.Write(chunk.data)

		crc := crc32.NewIEEE()
		crc.Write([]byte(chunk.kind))
		crc.Write(chunk.data)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		out.Write(sum[:])
	}
	return out.Bytes()
}

func encodeTestJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg, format
}

func imageResponder(status int, contentType string, body []byte) httpmock.Responder {
	return httpmock.NewBytesResponder(status, body).HeaderSet(http.Header{"Content-Type": {contentType}})
}
