package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/mhbvr/shutter"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/klog/v2"
)

// Client talks to a remote photo library and keeps the last index it saw.
type Client struct {
	conn *grpc.ClientConn
	own  bool

	mu     sync.Mutex
	photos []shutter.Record
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c := NewClient(conn)
	c.own = true
	return c, nil
}

// NewClient uses an existing connection. Close leaves conn open.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, photos: []shutter.Record{}}
}

func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp, opts...); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) update(photos []Photo) {
	records := toRecords(photos)
	c.mu.Lock()
	c.photos = records
	c.mu.Unlock()
}

// Load asks the server to reload its index from storage.
func (c *Client) Load(ctx context.Context) error {
	var resp ListResponse
	if err := c.invoke(ctx, "Load", &LoadRequest{}, &resp); err != nil {
		return err
	}
	c.update(resp.Photos)
	return nil
}

// List fetches the server's current index.
func (c *Client) List(ctx context.Context, opts ...grpc.CallOption) ([]shutter.Record, error) {
	var resp ListResponse
	if err := c.invoke(ctx, "List", &ListRequest{}, &resp, opts...); err != nil {
		return nil, err
	}
	c.update(resp.Photos)
	return toRecords(resp.Photos), nil
}

func (c *Client) Capture(ctx context.Context) (shutter.Record, error) {
	var resp CaptureResponse
	if err := c.invoke(ctx, "Capture", &CaptureRequest{}, &resp); err != nil {
		return shutter.Record{}, err
	}
	c.update(resp.Photos)
	return toRecord(resp.Photo), nil
}

func (c *Client) Delete(ctx context.Context, rec shutter.Record, position int) error {
	var resp ListResponse
	req := &DeleteRequest{Photo: toPhoto(rec), Position: position}
	if err := c.invoke(ctx, "Delete", req, &resp); err != nil {
		return err
	}
	c.update(resp.Photos)
	return nil
}

// Blob fetches one stored photo and its media type.
func (c *Client) Blob(ctx context.Context, name string, opts ...grpc.CallOption) ([]byte, string, error) {
	var resp GetBlobResponse
	if err := c.invoke(ctx, "GetBlob", &GetBlobRequest{Name: name}, &resp, opts...); err != nil {
		return nil, "", err
	}
	return resp.Data, resp.MediaType, nil
}

// Snapshot returns the index as of the last call that returned one.
func (c *Client) Snapshot() []shutter.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.photos)
}

// Watch streams the server's index after every change. The channel is
// closed when ctx is done or the stream fails.
func (c *Client) Watch(ctx context.Context) (<-chan []shutter.Record, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"), grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.SendMsg(&WatchRequest{}); err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}

	ch := make(chan []shutter.Record)
	go func() {
		defer close(ch)
		for {
			var resp ListResponse
			if err := stream.RecvMsg(&resp); err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					klog.ErrorS(fromStatus(err), "watch stream failed")
				}
				return
			}
			c.update(resp.Photos)
			select {
			case ch <- toRecords(resp.Photos):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
