package workbench

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RunCmdOptions contains options for customizing RunCmd behavior
type RunCmdOptions struct {
	// MCPTransport allows providing a custom transport for MCP server (used for testing)
	MCPTransport *mcp.InMemoryTransport
	// Stdout writer for normal output (defaults to os.Stdout)
	Stdout io.Writer
	// Stderr writer for error and log output (defaults to os.Stderr)
	Stderr io.Writer
}

// commandContext holds runtime context for command execution
type commandContext struct {
	stdout  io.Writer
	stderr  io.Writer
	config  *Config
	logger  *slog.Logger
	verbose bool
}

func RunCmd(args []string, options *RunCmdOptions) error {
	stdout, stderr := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if options != nil {
		if options.Stdout != nil {
			stdout = options.Stdout
		}
		if options.Stderr != nil {
			stderr = options.Stderr
		}
	}

	if len(args) < 1 {
		return ShowHelp(stdout)
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		help       = fs.Bool("h", false, "Show help")
		mcpOption  = fs.Bool("mcp", false, "Run as MCP server")
		verbose    = fs.Bool("v", false, "Verbose output")
		dryRun     = fs.Bool("dry-run", false, "Show pending changes without saving")
		configFile = fs.String("config", "", "Path to configuration file")
		mcpRoot    = fs.String("root", "", "Project root for the MCP server")
	)

	if len(args) > 1 {
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
	}

	if *help {
		return ShowHelp(stdout)
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := NewDefaultValidator(config).ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := config.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if *mcpOption {
		var transport *mcp.InMemoryTransport
		if options != nil && options.MCPTransport != nil {
			transport = options.MCPTransport
		}
		root, err := resolveRoot(*mcpRoot)
		if err != nil {
			return err
		}
		return RunMCPServer(config, root, logger, transport)
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return ShowHelp(stdout)
	}

	cmdCtx := &commandContext{
		stdout:  stdout,
		stderr:  stderr,
		config:  config,
		logger:  logger,
		verbose: *verbose,
	}

	ctx := context.Background()

	switch remaining[0] {
	case "list":
		return listTagsCommand(ctx, cmdCtx, remaining[1:])
	case "show":
		return showCommand(ctx, cmdCtx, remaining[1:])
	case "add":
		return addCommand(ctx, cmdCtx, remaining[1:], *dryRun)
	case "delete":
		return deleteCommand(ctx, cmdCtx, remaining[1:], *dryRun)
	case "rename":
		return renameCommand(ctx, cmdCtx, remaining[1:], *dryRun)
	case "gather":
		return gatherCommand(ctx, cmdCtx, remaining[1:], *dryRun)
	case "copy":
		return copyCommand(ctx, cmdCtx, remaining[1:], *dryRun)
	case "validate":
		return validateTagsCommand(cmdCtx, remaining[1:])
	default:
		return fmt.Errorf("unknown command: %s", remaining[0])
	}
}

func ShowHelp(w io.Writer) error {
	help := `Tag Workbench - Edit comma separated tag sidecar files for image folders

Usage:
  tag-workbench [OPTIONS] COMMAND [ARGS...]
  tag-workbench -mcp -root DIR  Run as MCP server

Options:
  -h                   Show this help message
  -v                   Enable verbose (debug) logging
  -dry-run             Show pending tag changes without saving
  -config FILE         Path to configuration file
  -mcp                 Run as MCP server
  -root DIR            Project root for the MCP server

Commands:
  list         List tags with the number of images using them
  show         Show the ordered tags of specific images
  add          Add tags to images
  delete       Remove tags from images
  rename       Rename a tag in place
  gather       Move tags next to each other in every image holding them
  copy         Copy tags from one image to others
  validate     Validate tag names

Examples:
  tag-workbench list --root="/path/to/dataset" --min-count=2
  tag-workbench show --root="/path/to/dataset" --files="a.png,b.png"
  tag-workbench add --root="/path/to/dataset" --tags="red,blue" --files="a.png" --prepend
  tag-workbench -dry-run delete --root="/path/to/dataset" --tags="blurry"
  tag-workbench rename --root="/path/to/dataset" --old="grey" --new="gray"
  tag-workbench gather --root="/path/to/dataset" --tags="1girl,solo"
  tag-workbench copy --root="/path/to/dataset" --from="a.png" --files="b.png,c.png"
  tag-workbench validate --tags="blue sky, night"
`
	_, _ = fmt.Fprint(w, help)
	return nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %s: %w", root, err)
	}
	return abs, nil
}

// open loads every asset under root into a new Workbench.
func (c *commandContext) open(ctx context.Context, root string) (*Workbench, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	project, err := NewFilesystemProject(c.config, root)
	if err != nil {
		return nil, err
	}

	logger := c.logger
	wb := NewWorkbench(project, c.config, WithLogger(logger), WithProgress(func(p Progress) {
		logger.Debug("load_progress", "completed", p.Completed, "failed", p.Failed, "total", p.Total)
	}))
	result, err := wb.LoadAssets(ctx)
	if err != nil {
		return nil, err
	}

	if result.Failed > 0 {
		_, _ = fmt.Fprintf(c.stderr, "Skipped %d unreadable files\n", result.Failed)
		if c.verbose {
			for _, msg := range result.Errors {
				_, _ = fmt.Fprintf(c.stderr, "  %s\n", msg)
			}
		}
	}
	return wb, nil
}

// commit saves every modified asset, or prints the pending state on a dry run.
func (c *commandContext) commit(ctx context.Context, wb *Workbench, dryRun, jsonOutput bool) error {
	if dryRun {
		pending := make(map[string][]TagWithStatus)
		var order []string
		wb.View(func(s *AssetStore) {
			order = s.ModifiedAssetIDs()
			for _, id := range order {
				pending[id] = s.OrderedTagsWithStatus(id)
			}
		})

		if jsonOutput {
			return json.NewEncoder(c.stdout).Encode(pending)
		}

		_, _ = fmt.Fprintln(c.stdout, "DRY RUN MODE - No files will be modified")
		_, _ = fmt.Fprintf(c.stdout, "Modified images: %d\n", len(order))
		for _, id := range order {
			_, _ = fmt.Fprint(c.stdout, RenderAssetTags(id, pending[id]))
		}
		return nil
	}

	result := wb.SaveAllAssets(ctx)
	if jsonOutput {
		if err := json.NewEncoder(c.stdout).Encode(result); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(c.stdout, "Saved images: %d\n", result.SavedCount)
		if c.verbose {
			for _, outcome := range result.Results {
				if outcome.Success {
					_, _ = fmt.Fprintf(c.stdout, "  %s\n", outcome.FileID)
				}
			}
		}
		if result.ErrorCount > 0 {
			_, _ = fmt.Fprintf(c.stdout, "Errors: %d\n", result.ErrorCount)
			for _, errMsg := range result.Errors {
				_, _ = fmt.Fprintf(c.stdout, "  %s\n", errMsg)
			}
		}
	}

	if result.ErrorCount > 0 {
		return fmt.Errorf("completed with %d errors", result.ErrorCount)
	}
	return nil
}

func listTagsCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	minCount := fs.Int("min-count", 1, "Minimum usage count")
	pattern := fs.String("pattern", "", "Only list tags containing this substring")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	var tags []TagInfo
	wb.View(func(s *AssetStore) {
		tags = s.TagCountsSorted(*minCount)
	})

	if *pattern != "" {
		var filtered []TagInfo
		for _, tag := range tags {
			if strings.Contains(tag.Name, *pattern) {
				filtered = append(filtered, tag)
			}
		}
		tags = filtered
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(tags)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "Found %d tags:\n", len(tags))
	_, _ = fmt.Fprintln(cmdCtx.stdout, RenderTagCounts(tags))
	return nil
}

func showCommand(ctx context.Context, cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	files := fs.String("files", "", "Comma-separated image paths relative to root (default: all)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	var assets []Asset
	wb.View(func(s *AssetStore) {
		ids := parseFileIDs(*files)
		if ids == nil {
			ids = s.AssetIDs()
		}
		for _, id := range ids {
			if asset, ok := s.Asset(id); ok {
				assets = append(assets, asset)
			}
		}
	})

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(assets)
	}

	for _, asset := range assets {
		tags := make([]TagWithStatus, len(asset.TagList))
		for i, tag := range asset.TagList {
			tags[i] = TagWithStatus{Name: tag, Status: asset.TagStatus[tag]}
		}
		_, _ = fmt.Fprint(cmdCtx.stdout, RenderAssetTags(asset.FileID, tags))
		_, _ = fmt.Fprintf(cmdCtx.stdout, "  %s\n", labelStyle.Render(
			fmt.Sprintf("%dx%d %s", asset.Dimensions.Width, asset.Dimensions.Height, asset.FileExtension)))
	}
	return nil
}

func addCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	tags := fs.String("tags", "", "Comma-separated tags to add")
	files := fs.String("files", "", "Comma-separated image paths relative to root (default: all)")
	prepend := fs.Bool("prepend", false, "Insert tags at the start instead of the end")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show pending changes without saving")

	if err := fs.Parse(args); err != nil {
		return err
	}

	tagList := parseTagList(*tags)
	if len(tagList) == 0 {
		return fmt.Errorf("--tags is required")
	}
	if err := cmdCtx.validateTags(tagList); err != nil {
		return err
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	pos := PositionEnd
	if *prepend {
		pos = PositionStart
	}

	wb.Update(func(s *AssetStore) {
		ids := parseFileIDs(*files)
		if ids == nil {
			ids = s.AssetIDs()
		}
		for _, id := range ids {
			s.AddMultipleTags(id, tagList, pos)
		}
	})

	return cmdCtx.commit(ctx, wb, globalDryRun || *localDryRun, *jsonOutput)
}

func deleteCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	tags := fs.String("tags", "", "Comma-separated tags to remove")
	files := fs.String("files", "", "Comma-separated image paths relative to root (default: all)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show pending changes without saving")

	if err := fs.Parse(args); err != nil {
		return err
	}

	tagList := parseTagList(*tags)
	if len(tagList) == 0 {
		return fmt.Errorf("--tags is required")
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	wb.Update(func(s *AssetStore) {
		s.MarkTagsToDelete(tagList, parseFileIDs(*files))
	})

	return cmdCtx.commit(ctx, wb, globalDryRun || *localDryRun, *jsonOutput)
}

func renameCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool) error {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	oldName := fs.String("old", "", "Tag to rename")
	newName := fs.String("new", "", "New tag name")
	files := fs.String("files", "", "Comma-separated image paths relative to root (default: all)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show pending changes without saving")

	if err := fs.Parse(args); err != nil {
		return err
	}

	oldTag, newTag := strings.TrimSpace(*oldName), strings.TrimSpace(*newName)
	if oldTag == "" || newTag == "" {
		return fmt.Errorf("both --old and --new are required")
	}
	if err := cmdCtx.validateTags([]string{newTag}); err != nil {
		return err
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	wb.Update(func(s *AssetStore) {
		ids := parseFileIDs(*files)
		if ids == nil {
			ids = s.AssetIDs()
		}
		for _, id := range ids {
			s.EditTag(id, oldTag, newTag)
		}
	})

	return cmdCtx.commit(ctx, wb, globalDryRun || *localDryRun, *jsonOutput)
}

func gatherCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool) error {
	fs := flag.NewFlagSet("gather", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	tags := fs.String("tags", "", "Comma-separated tags to gather")
	files := fs.String("files", "", "Comma-separated image paths relative to root (default: all)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show pending changes without saving")

	if err := fs.Parse(args); err != nil {
		return err
	}

	tagList := parseTagList(*tags)
	if len(tagList) < 2 {
		return fmt.Errorf("--tags needs at least two tags")
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	wb.Update(func(s *AssetStore) {
		s.GatherTags(tagList, parseFileIDs(*files))
	})

	return cmdCtx.commit(ctx, wb, globalDryRun || *localDryRun, *jsonOutput)
}

func copyCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool) error {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)

	root := fs.String("root", "", "Project root (defaults to current directory)")
	from := fs.String("from", "", "Image path to copy tags from")
	tags := fs.String("tags", "", "Comma-separated tags to copy (default: every tag of --from)")
	files := fs.String("files", "", "Comma-separated target image paths relative to root")
	prepend := fs.Bool("prepend", false, "Insert tags at the start instead of the end")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show pending changes without saving")

	if err := fs.Parse(args); err != nil {
		return err
	}

	targets := parseFileIDs(*files)
	if len(targets) == 0 {
		return fmt.Errorf("--files is required")
	}
	tagList := parseTagList(*tags)
	if *from == "" && len(tagList) == 0 {
		return fmt.Errorf("either --from or --tags is required")
	}
	if err := cmdCtx.validateTags(tagList); err != nil {
		return err
	}

	wb, err := cmdCtx.open(ctx, *root)
	if err != nil {
		return err
	}

	pos := PositionEnd
	if *prepend {
		pos = PositionStart
	}

	var missing bool
	wb.Update(func(s *AssetStore) {
		if len(tagList) == 0 {
			source, ok := s.Asset(normalizeFileID(*from))
			if !ok {
				missing = true
				return
			}
			tagList = persistedTags(&source)
		}
		s.CopyTagsToAssets(tagList, targets, pos)
	})
	if missing {
		return fmt.Errorf("source image not found: %s", *from)
	}

	return cmdCtx.commit(ctx, wb, globalDryRun || *localDryRun, *jsonOutput)
}

func validateTagsCommand(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	tags := fs.String("tags", "", "Comma-separated list of tags to validate")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tags == "" {
		return fmt.Errorf("--tags is required")
	}

	validator := NewDefaultValidator(cmdCtx.config)
	results := make(map[string]*ValidationResult)
	var order []string
	for _, tag := range strings.Split(*tags, ",") {
		tag = strings.TrimSpace(tag)
		if _, seen := results[tag]; seen {
			continue
		}
		results[tag] = validator.ValidateTag(tag)
		order = append(order, tag)
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(results)
	}

	for _, tag := range order {
		result := results[tag]
		if result.IsValid {
			_, _ = fmt.Fprintf(cmdCtx.stdout, "\n✓ %s: VALID\n", tag)
		} else {
			_, _ = fmt.Fprintf(cmdCtx.stdout, "\n✗ %s: INVALID\n", tag)
			for _, issue := range result.Issues {
				_, _ = fmt.Fprintf(cmdCtx.stdout, "  Issue: %s\n", issue)
			}
		}
		for _, suggestion := range result.Suggestions {
			_, _ = fmt.Fprintf(cmdCtx.stdout, "  → %s\n", suggestion)
		}
	}

	return nil
}

func (c *commandContext) validateTags(tags []string) error {
	validator := NewDefaultValidator(c.config)
	for _, tag := range tags {
		if result := validator.ValidateTag(tag); !result.IsValid {
			return fmt.Errorf("invalid tag %q: %s", tag, strings.Join(result.Issues, "; "))
		}
	}
	return nil
}

func parseTagList(tagStr string) []string {
	if tagStr == "" {
		return nil
	}
	parts := strings.Split(tagStr, ",")
	var tags []string
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag != "" && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

// parseFileIDs returns nil for an unset flag, meaning every image. A flag
// holding only separators selects no image.
func parseFileIDs(filesStr string) []string {
	if strings.TrimSpace(filesStr) == "" {
		return nil
	}
	ids := []string{}
	for _, part := range strings.Split(filesStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, normalizeFileID(part))
		}
	}
	return ids
}

func normalizeFileID(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
