// Package rpc exposes a photo library over gRPC.
//
// Messages are plain structs encoded with a JSON codec registered under the
// "json" content-subtype, so the service needs no generated code. Server
// adapts a *library.Library, Client implements the controller's Library.
package rpc

import (
	"context"

	"github.com/mhbvr/shutter"
	"google.golang.org/grpc"
)

const ServiceName = "shutter.PhotoLibrary"

type Photo struct {
	FilePath    string `json:"filePath"`
	DisplayPath string `json:"displayPath"`
	ID          uint64 `json:"id"`
	Pending     bool   `json:"pending,omitempty"`
}

type LoadRequest struct{}

type ListRequest struct{}

type WatchRequest struct{}

type CaptureRequest struct{}

type CaptureResponse struct {
	Photo  Photo   `json:"photo"`
	Photos []Photo `json:"photos"`
}

type DeleteRequest struct {
	Photo    Photo `json:"photo"`
	Position int   `json:"position"`
}

// ListResponse carries the whole index, newest first.
type ListResponse struct {
	Photos []Photo `json:"photos"`
}

type GetBlobRequest struct {
	Name string `json:"name"`
}

type GetBlobResponse struct {
	Data      []byte `json:"data"`
	MediaType string `json:"mediaType"`
}

// PhotoLibraryServer is the server side of the service.
type PhotoLibraryServer interface {
	Load(context.Context, *LoadRequest) (*ListResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Capture(context.Context, *CaptureRequest) (*CaptureResponse, error)
	Delete(context.Context, *DeleteRequest) (*ListResponse, error)
	GetBlob(context.Context, *GetBlobRequest) (*GetBlobResponse, error)
	Watch(*WatchRequest, grpc.ServerStream) error
}

// RegisterPhotoLibraryServer registers srv on s.
func RegisterPhotoLibraryServer(s grpc.ServiceRegistrar, srv PhotoLibraryServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PhotoLibraryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Load", PhotoLibraryServer.Load),
		unary("List", PhotoLibraryServer.List),
		unary("Capture", PhotoLibraryServer.Capture),
		unary("Delete", PhotoLibraryServer.Delete),
		unary("GetBlob", PhotoLibraryServer.GetBlob),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "shutter/rpc",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor for one request/response call.
func unary[Req, Resp any](name string, call func(PhotoLibraryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PhotoLibraryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PhotoLibraryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PhotoLibraryServer).Watch(in, stream)
}

func toPhoto(r shutter.Record) Photo {
	return Photo{
		FilePath:    r.FilePath,
		DisplayPath: r.DisplayPath,
		ID:          r.ID,
		Pending:     r.State == shutter.Pending,
	}
}

func toPhotos(records []shutter.Record) []Photo {
	photos := make([]Photo, 0, len(records))
	for _, r := range records {
		photos = append(photos, toPhoto(r))
	}
	return photos
}

func toRecord(p Photo) shutter.Record {
	r := shutter.Record{
		FilePath:    p.FilePath,
		DisplayPath: p.DisplayPath,
		ID:          p.ID,
	}
	if p.Pending {
		r.State = shutter.Pending
	}
	return r
}

func toRecords(photos []Photo) []shutter.Record {
	records := make([]shutter.Record, 0, len(photos))
	for _, p := range photos {
		records = append(records, toRecord(p))
	}
	return records
}
