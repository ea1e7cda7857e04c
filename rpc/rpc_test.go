package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/controller"
	"github.com/mhbvr/shutter/db/bolt"
	"github.com/mhbvr/shutter/library"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// jpegHeader is enough for content sniffing to report image/jpeg.
var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type pathCamera struct {
	path string
}

func (c pathCamera) Capture(context.Context, shutter.CaptureOptions) (shutter.Photo, error) {
	return shutter.Photo{URI: "file://" + c.path, Path: c.path}, nil
}

func newTestClient(t *testing.T) (*Client, *library.Library) {
	t.Helper()

	store, err := bolt.New(t.TempDir() + "/photos.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/inbox/frame.jpg", jpegHeader, 0644))

	clock := time.UnixMilli(1730000000000)
	lib := library.New(store, pathCamera{path: "/inbox/frame.jpg"},
		library.WithNativeHost(true),
		library.WithFs(fs),
		library.WithClock(func() time.Time { return clock }),
	)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterPhotoLibraryServer(s, NewServer(lib))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn), lib
}

func TestClient_ImplementsControllerLibrary(t *testing.T) {
	var _ controller.Library = (*Client)(nil)
}

func TestClient_CaptureListDelete(t *testing.T) {
	client, lib := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Load(ctx))
	assert.Empty(t, client.Snapshot())

	first, err := client.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1730000000000.jpeg", first.FilePath)
	assert.Equal(t, shutter.Committed, first.State)

	_, err = client.Capture(ctx)
	require.NoError(t, err)

	photos, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1730000000001.jpeg", "1730000000000.jpeg"}, []string{photos[0].FilePath, photos[1].FilePath})
	assert.Equal(t, photos, client.Snapshot())

	require.NoError(t, client.Delete(ctx, photos[0], 0))
	assert.Len(t, client.Snapshot(), 1)
	assert.Len(t, lib.Snapshot(), 1)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	err := client.Delete(ctx, shutter.Record{FilePath: "x.jpeg"}, 3)
	assert.ErrorIs(t, err, library.ErrPosition)
	assert.Equal(t, codes.OutOfRange, status.Code(err))

	_, _, err = client.Blob(ctx, "missing.jpeg")
	assert.ErrorIs(t, err, shutter.ErrNotFound)

	_, _, err = client.Blob(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestClient_Blob(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	rec, err := client.Capture(ctx)
	require.NoError(t, err)

	data, mediaType, err := client.Blob(ctx, rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, data)
	assert.Equal(t, "image/jpeg", mediaType)
}

func TestClient_Watch(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, err := client.Watch(ctx)
	require.NoError(t, err)
	assert.Empty(t, <-updates)

	_, err = client.Capture(ctx)
	require.NoError(t, err)

	for photos := range updates {
		if len(photos) == 1 && photos[0].State == shutter.Committed {
			assert.Equal(t, "1730000000000.jpeg", photos[0].FilePath)
			return
		}
	}
	t.Fatal("watch closed before the capture was committed")
}

func TestClient_DrivesController(t *testing.T) {
	client, lib := newTestClient(t)
	c := controller.New(client)
	defer c.Close()

	require.NoError(t, c.Activate(context.Background()))
	c.Capture()
	c.Wait()
	require.Len(t, c.Photos(), 1)

	c.RequestDelete(c.Photos()[0], 0)
	require.NoError(t, c.Choose(controller.OptionDelete))
	c.Wait()

	assert.Empty(t, c.Photos())
	assert.Empty(t, lib.Snapshot())
}

func TestCodec(t *testing.T) {
	var codec jsonCodec
	data, err := codec.Marshal(&DeleteRequest{Photo: Photo{FilePath: "a.jpeg", ID: 3}, Position: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"photo":{"filePath":"a.jpeg","displayPath":"","id":3},"position":1}`, string(data))
	assert.Equal(t, "json", codec.Name())
}
