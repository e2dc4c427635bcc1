package workbench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Parameter structures for MCP tools
type EmptyParams struct{}

type ListTagsParams struct {
	MinCount   int    `json:"min_count"`
	Pattern    string `json:"pattern,omitempty"`
	MaxResults *int   `json:"max_results,omitempty"`
}

type GetAssetTagsParams struct {
	FileIDs []string `json:"file_ids"`
}

type AddTagsParams struct {
	FileIDs []string `json:"file_ids"`
	Tags    []string `json:"tags"`
	Prepend bool     `json:"prepend,omitempty"`
}

type DeleteTagParams struct {
	FileID string `json:"file_id"`
	Tag    string `json:"tag"`
}

type EditTagParams struct {
	FileID string `json:"file_id"`
	OldTag string `json:"old_tag"`
	NewTag string `json:"new_tag"`
}

type ReorderTagsParams struct {
	FileID   string `json:"file_id"`
	OldIndex int    `json:"old_index"`
	NewIndex int    `json:"new_index"`
}

type BulkTagsParams struct {
	Tags    []string `json:"tags"`
	FileIDs []string `json:"file_ids,omitempty"`
}

type CopyTagsParams struct {
	Tags          []string `json:"tags"`
	TargetFileIDs []string `json:"target_file_ids"`
	Prepend       bool     `json:"prepend,omitempty"`
}

type FileParams struct {
	FileID string `json:"file_id"`
}

type ResetAllResult struct {
	ResetCount int `json:"reset_count"`
}

type ModifiedAssetsResult struct {
	FileIDs []string `json:"file_ids"`
}

// Tool handler functions
func LoadAssetsTool(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	result, err := wb.LoadAssets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return nil, result, nil
}

func ListTagsTool(ctx context.Context, req *mcp.CallToolRequest, args ListTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	var result []TagInfo
	wb.View(func(s *AssetStore) {
		result = s.TagCountsSorted(args.MinCount)
	})

	if args.Pattern != "" {
		pattern, err := regexp.Compile(args.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid pattern: %w", err)
		}
		result = filterTagsByPattern(result, pattern)
	}

	if args.MaxResults != nil && *args.MaxResults < 0 {
		return nil, nil, fmt.Errorf("max_results must not be negative")
	}
	if args.MaxResults != nil && len(result) > *args.MaxResults {
		result = result[:*args.MaxResults]
	}

	return nil, result, nil
}

func GetAssetTagsTool(ctx context.Context, req *mcp.CallToolRequest, args GetAssetTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	return nil, assetTags(wb, args.FileIDs), nil
}

func AddTagsTool(ctx context.Context, req *mcp.CallToolRequest, args AddTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	if err := validateToolTags(wb.config, args.Tags); err != nil {
		return nil, nil, err
	}

	wb.Update(func(s *AssetStore) {
		for _, id := range args.FileIDs {
			s.AddMultipleTags(id, args.Tags, position(args.Prepend))
		}
	})
	return nil, assetTags(wb, args.FileIDs), nil
}

func DeleteTagTool(ctx context.Context, req *mcp.CallToolRequest, args DeleteTagParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	wb.Update(func(s *AssetStore) {
		s.DeleteTag(args.FileID, args.Tag)
	})
	return nil, assetTags(wb, []string{args.FileID}), nil
}

func EditTagTool(ctx context.Context, req *mcp.CallToolRequest, args EditTagParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	if err := validateToolTags(wb.config, []string{args.NewTag}); err != nil {
		return nil, nil, err
	}

	wb.Update(func(s *AssetStore) {
		s.EditTag(args.FileID, args.OldTag, args.NewTag)
	})
	return nil, assetTags(wb, []string{args.FileID}), nil
}

func ReorderTagsTool(ctx context.Context, req *mcp.CallToolRequest, args ReorderTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	wb.Update(func(s *AssetStore) {
		s.ReorderTags(args.FileID, args.OldIndex, args.NewIndex)
	})
	return nil, assetTags(wb, []string{args.FileID}), nil
}

func GatherTagsTool(ctx context.Context, req *mcp.CallToolRequest, args BulkTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	wb.Update(func(s *AssetStore) {
		s.GatherTags(args.Tags, args.FileIDs)
	})
	return nil, modifiedAssets(wb), nil
}

func CopyTagsTool(ctx context.Context, req *mcp.CallToolRequest, args CopyTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	if err := validateToolTags(wb.config, args.Tags); err != nil {
		return nil, nil, err
	}

	wb.Update(func(s *AssetStore) {
		s.CopyTagsToAssets(args.Tags, args.TargetFileIDs, position(args.Prepend))
	})
	return nil, assetTags(wb, args.TargetFileIDs), nil
}

func MarkTagsToDeleteTool(ctx context.Context, req *mcp.CallToolRequest, args BulkTagsParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	wb.Update(func(s *AssetStore) {
		s.MarkTagsToDelete(args.Tags, args.FileIDs)
	})
	return nil, modifiedAssets(wb), nil
}

func ResetTagsTool(ctx context.Context, req *mcp.CallToolRequest, args FileParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	wb.Update(func(s *AssetStore) {
		s.ResetTags(args.FileID)
	})
	return nil, assetTags(wb, []string{args.FileID}), nil
}

func SaveAssetTool(ctx context.Context, req *mcp.CallToolRequest, args FileParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	result, err := wb.SaveAsset(ctx, args.FileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save asset: %w", err)
	}
	return nil, result, nil
}

func SaveAllTool(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	return nil, wb.SaveAllAssets(ctx), nil
}

func ResetAllTool(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	return nil, ResetAllResult{ResetCount: wb.ResetAllAssets()}, nil
}

func ModifiedAssetsTool(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams, wb *Workbench) (*mcp.CallToolResult, any, error) {
	return nil, modifiedAssets(wb), nil
}

// Helper functions for building results
func assetTags(wb *Workbench, fileIDs []string) map[string][]TagWithStatus {
	result := make(map[string][]TagWithStatus, len(fileIDs))
	wb.View(func(s *AssetStore) {
		for _, id := range fileIDs {
			if tags := s.OrderedTagsWithStatus(id); tags != nil {
				result[id] = tags
			}
		}
	})
	return result
}

func modifiedAssets(wb *Workbench) ModifiedAssetsResult {
	result := ModifiedAssetsResult{FileIDs: []string{}}
	wb.View(func(s *AssetStore) {
		result.FileIDs = append(result.FileIDs, s.ModifiedAssetIDs()...)
	})
	return result
}

func validateToolTags(config *Config, tags []string) error {
	validator := NewDefaultValidator(config)
	for _, tag := range tags {
		if result := validator.ValidateTag(tag); !result.IsValid {
			return fmt.Errorf("invalid tag %q: %s", tag, strings.Join(result.Issues, "; "))
		}
	}
	return nil
}

func filterTagsByPattern(tagInfos []TagInfo, pattern *regexp.Regexp) []TagInfo {
	var filtered []TagInfo
	for _, tagInfo := range tagInfos {
		if pattern.MatchString(tagInfo.Name) {
			filtered = append(filtered, tagInfo)
		}
	}
	return filtered
}

func position(prepend bool) Position {
	if prepend {
		return PositionStart
	}
	return PositionEnd
}

// NewMCPServer registers every workbench tool against wb.
func NewMCPServer(wb *Workbench) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tag-workbench",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_assets",
		Description: "Reload every image and its sidecar tags from the project, discarding unsaved edits",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams) (*mcp.CallToolResult, any, error) {
		return LoadAssetsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List tags with the number of images using them, excluding pending deletes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListTagsParams) (*mcp.CallToolResult, any, error) {
		return ListTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_asset_tags",
		Description: "Get the ordered tags and their pending status for specific images",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetAssetTagsParams) (*mcp.CallToolResult, any, error) {
		return GetAssetTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_tags",
		Description: "Add tags to images at the start or end of their tag lists",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args AddTagsParams) (*mcp.CallToolResult, any, error) {
		return AddTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_tag",
		Description: "Drop a pending tag or toggle the pending delete mark of a saved tag",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DeleteTagParams) (*mcp.CallToolResult, any, error) {
		return DeleteTagTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "edit_tag",
		Description: "Rename a tag of one image in place",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EditTagParams) (*mcp.CallToolResult, any, error) {
		return EditTagTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reorder_tags",
		Description: "Move a tag of one image to a new position",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ReorderTagsParams) (*mcp.CallToolResult, any, error) {
		return ReorderTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gather_tags",
		Description: "Move the given tags next to each other in every image holding at least two of them",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args BulkTagsParams) (*mcp.CallToolResult, any, error) {
		return GatherTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "copy_tags",
		Description: "Add the given tags to every target image missing them",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CopyTagsParams) (*mcp.CallToolResult, any, error) {
		return CopyTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "mark_tags_to_delete",
		Description: "Toggle the pending delete mark of the given tags across images",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args BulkTagsParams) (*mcp.CallToolResult, any, error) {
		return MarkTagsToDeleteTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset_tags",
		Description: "Discard pending tag edits of one image",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FileParams) (*mcp.CallToolResult, any, error) {
		return ResetTagsTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_asset",
		Description: "Write the pending tags of one image to its sidecar file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FileParams) (*mcp.CallToolResult, any, error) {
		return SaveAssetTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_all",
		Description: "Write every modified image's tags to its sidecar file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams) (*mcp.CallToolResult, any, error) {
		return SaveAllTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset_all",
		Description: "Discard pending tag edits of every image",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams) (*mcp.CallToolResult, any, error) {
		return ResetAllTool(ctx, req, args, wb)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "modified_assets",
		Description: "List images with unsaved tag changes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EmptyParams) (*mcp.CallToolResult, any, error) {
		return ModifiedAssetsTool(ctx, req, args, wb)
	})

	return server
}

// RunMCPServer loads the project at root and serves it over MCP.
// If transport is nil, it will use stdio transport
func RunMCPServer(config *Config, root string, logger *slog.Logger, transport *mcp.InMemoryTransport) error {
	project, err := NewFilesystemProject(config, root)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	wb := NewWorkbench(project, config, WithLogger(logger), WithMetrics(NewMetrics(reg)))

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.MetricsAddr != "" {
		stop, err := serveMetrics(config.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if _, err := wb.LoadAssets(ctx); err != nil {
		return err
	}

	server := NewMCPServer(wb)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if transport != nil {
		return server.Run(ctx, transport)
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}

// serveMetrics exposes reg on addr under /metrics until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "err", err)
		}
	}()
	logger.Info("metrics_server_started", "addr", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
