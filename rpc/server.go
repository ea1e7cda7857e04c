package rpc

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/library"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

// Server serves a photo library.
type Server struct {
	lib *library.Library
}

var _ PhotoLibraryServer = (*Server)(nil)

func NewServer(lib *library.Library) *Server {
	return &Server{lib: lib}
}

func (s *Server) Load(ctx context.Context, req *LoadRequest) (*ListResponse, error) {
	if err := s.lib.Load(ctx); err != nil {
		return nil, toStatus(err, "failed to load photos")
	}
	return &ListResponse{Photos: toPhotos(s.lib.Snapshot())}, nil
}

func (s *Server) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	return &ListResponse{Photos: toPhotos(s.lib.Snapshot())}, nil
}

func (s *Server) Capture(ctx context.Context, req *CaptureRequest) (*CaptureResponse, error) {
	rec, err := s.lib.Capture(ctx)
	if err != nil {
		return nil, toStatus(err, "capture failed")
	}
	return &CaptureResponse{
		Photo:  toPhoto(rec),
		Photos: toPhotos(s.lib.Snapshot()),
	}, nil
}

func (s *Server) Delete(ctx context.Context, req *DeleteRequest) (*ListResponse, error) {
	if err := s.lib.Delete(ctx, toRecord(req.Photo), req.Position); err != nil {
		return nil, toStatus(err, "delete failed")
	}
	return &ListResponse{Photos: toPhotos(s.lib.Snapshot())}, nil
}

func (s *Server) GetBlob(ctx context.Context, req *GetBlobRequest) (*GetBlobResponse, error) {
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "photo name must be set")
	}
	data, err := s.lib.Blob(ctx, req.Name)
	if err != nil {
		return nil, toStatus(err, "failed to read photo "+req.Name)
	}
	return &GetBlobResponse{
		Data:      data,
		MediaType: mimetype.Detect(data).String(),
	}, nil
}

// Watch streams the index after every change until the client goes away.
func (s *Server) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	for photos := range s.lib.Subscribe(ctx) {
		if err := stream.SendMsg(&ListResponse{Photos: toPhotos(photos)}); err != nil {
			klog.V(1).InfoS("watch stream ended", "err", err)
			return err
		}
	}
	return nil
}

// toStatus maps library errors onto gRPC codes.
func toStatus(err error, msg string) error {
	code := codes.Internal
	switch {
	case errors.Is(err, library.ErrPosition):
		code = codes.OutOfRange
	case errors.Is(err, library.ErrInFlight):
		code = codes.FailedPrecondition
	case errors.Is(err, shutter.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Errorf(code, "%s: %v", msg, err)
}

// fromStatus maps gRPC codes back onto the library's sentinel errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.OutOfRange:
		sentinel = library.ErrPosition
	case codes.FailedPrecondition:
		sentinel = library.ErrInFlight
	case codes.NotFound:
		sentinel = shutter.ErrNotFound
	case codes.Canceled:
		sentinel = context.Canceled
	case codes.DeadlineExceeded:
		sentinel = context.DeadlineExceeded
	default:
		return err
	}
	return errors.Join(sentinel, err)
}
