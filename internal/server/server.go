// Package server implements the gRPC StandardStore service
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/internal/metrics"
	"github.com/nainya/standardstore/pkg/datastore"
	"github.com/nainya/standardstore/pkg/index"
	"github.com/nainya/standardstore/pkg/processor"
	"github.com/nainya/standardstore/pkg/standards"
	"github.com/nainya/standardstore/pkg/tools"
)

// StatsSource reports index statistics.
type StatsSource interface {
	Stats(ctx context.Context) (*index.Stats, error)
}

// Server implements StandardStoreServer
type Server struct {
	tools    *tools.Service
	stats    StatsSource
	store    *datastore.Store
	procOpts processor.Options

	log     *logger.Logger
	metrics *metrics.Metrics
}

// Deps are the collaborators of a Server.
type Deps struct {
	Tools   *tools.Service
	Stats   StatsSource
	Store   *datastore.Store
	Process processor.Options
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// NewServer creates a new gRPC service implementation
func NewServer(d Deps) (*Server, error) {
	if d.Tools == nil || d.Stats == nil || d.Store == nil {
		return nil, errors.New("server: tools, stats and store are required")
	}
	return &Server{
		tools:    d.Tools,
		stats:    d.Stats,
		store:    d.Store,
		procOpts: d.Process,
		log:      logger.OrNop(d.Logger),
		metrics:  d.Metrics,
	}, nil
}

// ========== Tool Operations ==========

func (s *Server) GetStandard(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	resp := s.tools.GetStandardDetails(ctx, req.GetValue())
	if err := toolStatus(resp); err != nil {
		return nil, err
	}
	return toStruct(resp)
}

func (s *Server) FindRelevantStandards(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	activity := fields["activity"].GetStringValue()
	maxResults := int(fields["max_results"].GetNumberValue())
	grade := fields["grade"].GetStringValue()

	resp := s.tools.FindRelevantStandards(ctx, activity, maxResults, grade)
	if err := toolStatus(resp); err != nil {
		return nil, err
	}
	return toStruct(resp)
}

// toolStatus maps failed tool responses to gRPC status errors. An empty
// result is a successful call.
func toolStatus(resp tools.Response) error {
	switch resp.ErrorType {
	case tools.InvalidInput:
		return status.Error(codes.InvalidArgument, resp.Message)
	case tools.NotFound:
		return status.Error(codes.NotFound, resp.Message)
	case tools.APIError:
		return status.Error(codes.Internal, resp.Message)
	}
	return nil
}

// ========== Index Operations ==========

func (s *Server) GetIndexStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.stats.Stats(ctx)
	if errors.Is(err, index.ErrNotInitialized) {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to read index stats: %v", err)
	}
	return toStruct(st)
}

// ========== Processing Operations ==========

func (s *Server) ProcessSet(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	setID := req.GetValue()
	if err := datastore.ValidateID(setID); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	log := s.log.ProcessorLogger(setID)
	log.Debug("Processing standard set").Send()
	start := time.Now()
	res, err := s.store.ProcessSet(setID, s.procOpts)
	if res != nil {
		log.LogProcessRun(time.Since(start), res.Summary.Succeeded, res.Summary.Failed, res.Summary.FailedIDs)
		s.metrics.RecordProcessRun(res.Summary.Succeeded, res.Summary.Failed, time.Since(start))
	}

	var batchErr *processor.BatchError
	switch {
	case err == nil:
	case errors.Is(err, datastore.ErrInvalidID):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, os.ErrNotExist):
		return nil, status.Errorf(codes.NotFound, "standard set %s has not been downloaded", setID)
	case errors.Is(err, standards.ErrMalformedDocument):
		return nil, status.Errorf(codes.InvalidArgument, "standard set %s: %v", setID, err)
	case errors.As(err, &batchErr):
		return nil, status.Error(codes.FailedPrecondition, batchErr.Error())
	default:
		log.Error("Processing failed").Err(err).Send()
		return nil, status.Errorf(codes.Internal, "failed to process %s: %v", setID, err)
	}

	return toStruct(map[string]any{
		"set_id":    setID,
		"summary":   res.Summary,
		"leaves":    res.Leaves,
		"complete":  res.Complete(),
		"output":    s.store.ProcessedPath(setID),
		"processed": len(res.Records),
	})
}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "decode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return out, nil
}

// String describes the server for startup logs.
func (s *Server) String() string {
	return fmt.Sprintf("StandardStore(data=%s)", s.store.Root())
}
