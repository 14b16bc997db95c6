package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

const (
	uriScheme = "neurovault://"

	// timelineSize is the number of records in the timeline resource.
	timelineSize = 20
)

// recordResource is the JSON body of a record resource.
type recordResource struct {
	RecordOutput
	ChildIDs []int64 `json:"child_ids,omitempty"`
}

// registerResources registers the record resources when the record port is set.
func (s *Server) registerResources() {
	if s.ports.Records == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "timeline",
		Name:        "timeline",
		Description: "The most recent records in the vault, newest first",
		MIMEType:    "application/json",
	}, s.handleTimelineResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{recordId}",
		Name:        "record",
		Description: "A single record, with the ids of its chunks when it is a document",
		MIMEType:    "application/json",
	}, s.handleRecordResource)
}

func (s *Server) handleTimelineResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records, err := s.ports.Records.Timeline(ctx, 0, timelineSize)
	if err != nil {
		return nil, fmt.Errorf("loading timeline: %w", err)
	}

	out := make([]RecordOutput, len(records))
	for i := range records {
		out[i] = toRecordOutput(&records[i])
	}
	return jsonResource(req.Params.URI, out)
}

func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractRecordID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	node, err := s.ports.Records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}

	res := recordResource{RecordOutput: toRecordOutput(node.Base())}
	if parent, ok := node.(*domain.ParentRecord); ok {
		res.ChildIDs = parent.ChildIDs
	}
	return jsonResource(req.Params.URI, res)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRecordID parses a URI like neurovault://records/{recordId}.
func extractRecordID(uri string) (int64, bool) {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
