package workbench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrAssetNotFound  = errors.New("asset not found")
	ErrSaveInProgress = errors.New("save already in progress")
)

// ProgressFunc observes load progress after each batch. Values never decrease.
type ProgressFunc func(Progress)

// Workbench owns an AssetStore and moves it to and from a Project. Mutations
// run under a single lock; collaborator I/O runs outside it so other assets
// can be edited while a save is in flight.
type Workbench struct {
	mu         sync.Mutex
	store      *AssetStore
	project    Project
	config     *Config
	logger     *slog.Logger
	metrics    *Metrics
	onProgress ProgressFunc
}

type Option func(*Workbench)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workbench) {
		w.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(w *Workbench) {
		w.metrics = metrics
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(w *Workbench) {
		w.onProgress = fn
	}
}

func NewWorkbench(project Project, config *Config, opts ...Option) *Workbench {
	w := &Workbench{
		store:   NewAssetStore(nil),
		project: project,
		config:  config,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Update runs fn with exclusive access to the store. Use it for tag mutations.
func (w *Workbench) Update(fn func(*AssetStore)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.store)
	w.refreshModified()
}

// View runs fn with exclusive access to the store. Selectors memoize, so
// reads also need the lock.
func (w *Workbench) View(fn func(*AssetStore)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.store)
}

// LoadAssets replaces the store with every asset the project lists. Files are
// read in batches; a failing batch is retried item by item so one bad file
// only costs itself. Only a failed listing is returned as an error.
func (w *Workbench) LoadAssets(ctx context.Context) (*LoadResult, error) {
	started := time.Now()

	w.mu.Lock()
	w.store.IOState = IOLoading
	w.store.LoadProgress = Progress{}
	w.mu.Unlock()

	files, err := w.project.ListImageFiles(ctx)
	if err != nil {
		w.mu.Lock()
		w.store.IOState = IOError
		w.mu.Unlock()
		w.logger.Error("asset_list_failed", "err", err)
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	result := &LoadResult{Total: len(files)}
	w.setLoadProgress(Progress{Total: len(files)})

	batchSize := max(w.config.BatchSize, 1)
	loaded := make([]*Asset, 0, len(files))
	for start := 0; start < len(files); start += batchSize {
		batch := files[start:min(start+batchSize, len(files))]

		assets, errs := w.loadBatch(ctx, batch)
		loaded = append(loaded, assets...)
		result.Completed += len(batch)
		result.Failed += len(errs)
		result.Errors = append(result.Errors, errs...)

		w.setLoadProgress(Progress{Total: result.Total, Completed: result.Completed, Failed: result.Failed})
	}

	w.mu.Lock()
	w.store.Replace(loaded)
	w.store.IOState = IOComplete
	w.refreshModified()
	w.mu.Unlock()

	w.metrics.observeLoad(len(loaded), result.Failed, started)
	w.logger.Info("assets_loaded",
		"total", result.Total,
		"loaded", len(loaded),
		"failed", result.Failed,
		"duration_ms", time.Since(started).Milliseconds())

	return result, nil
}

func (w *Workbench) loadBatch(ctx context.Context, batch []string) ([]*Asset, []string) {
	assets := make([]*Asset, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.config.LoadConcurrency, 1))
	for i, fileID := range batch {
		g.Go(func() error {
			asset, err := w.project.ReadAsset(gctx, fileID)
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return assets, nil
	}

	w.logger.Debug("asset_batch_fallback", "size", len(batch))

	var (
		good []*Asset
		errs []string
	)
	for _, fileID := range batch {
		asset, err := w.project.ReadAsset(ctx, fileID)
		if err != nil {
			w.logger.Error("asset_load_failed", "file", fileID, "err", err)
			errs = append(errs, fmt.Sprintf("%s: %v", fileID, err))
			continue
		}
		good = append(good, asset)
	}
	return good, errs
}

func (w *Workbench) setLoadProgress(p Progress) {
	w.mu.Lock()
	w.store.LoadProgress = p
	w.mu.Unlock()

	if w.onProgress != nil {
		w.onProgress(p)
	}
}

// SaveAsset writes the asset's non soft-deleted tags and, on success, rebases
// its saved list onto them. On failure nothing but the I/O state changes.
func (w *Workbench) SaveAsset(ctx context.Context, fileID string) (*SaveResult, error) {
	w.mu.Lock()
	index, ok := w.store.index[fileID]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, fileID)
	}
	asset := w.store.assets[index]
	if asset.IOState == IOSaving {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSaveInProgress, fileID)
	}
	persist := persistedTags(asset)
	asset.IOState = IOSaving
	w.mu.Unlock()

	err := w.project.WriteTags(ctx, fileID, FlattenTags(persist))
	w.metrics.observeSave(err)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		asset.IOState = IOError
		w.logger.Error("asset_save_failed", "file", fileID, "err", err)
		return nil, fmt.Errorf("saving %s: %w", fileID, err)
	}
	asset.IOState = IOComplete

	w.logger.Debug("asset_saved", "file", fileID, "tags", len(persist))

	// A reload during the write replaced the asset; the fresh copy wins.
	if w.store.lookup(fileID) != asset {
		status := make(map[string]TagFlags, len(persist))
		for _, tag := range persist {
			status[tag] = TagSaved
		}
		return &SaveResult{Index: index, FileID: fileID, TagList: persist, TagStatus: status, SavedTagList: slices.Clone(persist)}, nil
	}

	w.store.rebase(asset, persist)
	w.refreshModified()
	return &SaveResult{
		Index:        index,
		FileID:       fileID,
		TagList:      slices.Clone(asset.TagList),
		TagStatus:    maps.Clone(asset.TagStatus),
		SavedTagList: slices.Clone(asset.SavedTagList),
	}, nil
}

// SaveAllAssets saves every modified asset one after another. A failure is
// recorded and the batch carries on.
func (w *Workbench) SaveAllAssets(ctx context.Context) *SaveAllResult {
	result := &SaveAllResult{Results: []AssetSaveOutcome{}}

	w.mu.Lock()
	var pending []string
	for _, asset := range w.store.assets {
		if isModified(asset) && asset.IOState != IOSaving {
			pending = append(pending, asset.FileID)
		}
	}
	if len(pending) == 0 {
		w.mu.Unlock()
		return result
	}
	w.store.IOState = IOSaving
	w.store.SaveProgress = Progress{Total: len(pending)}
	w.mu.Unlock()

	for _, fileID := range pending {
		outcome := AssetSaveOutcome{FileID: fileID, Success: true}
		if _, err := w.SaveAsset(ctx, fileID); err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
			result.ErrorCount++
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.SavedCount++
		}
		result.Results = append(result.Results, outcome)

		w.mu.Lock()
		w.store.SaveProgress.Completed++
		if !outcome.Success {
			w.store.SaveProgress.Failed++
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	if result.ErrorCount > 0 {
		w.store.IOState = IOError
	} else {
		w.store.IOState = IOComplete
	}
	w.refreshModified()
	w.mu.Unlock()

	w.logger.Info("assets_saved", "saved", result.SavedCount, "failed", result.ErrorCount)
	return result
}

// ResetAllAssets discards pending edits on every modified asset and returns
// how many were reset.
func (w *Workbench) ResetAllAssets() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := w.store.ModifiedAssetIDs()
	for _, id := range ids {
		w.store.ResetTags(id)
	}
	w.refreshModified()
	return len(ids)
}

// refreshModified publishes the modified asset count. Callers hold w.mu.
func (w *Workbench) refreshModified() {
	if w.metrics == nil {
		return
	}
	w.metrics.setModified(len(w.store.ModifiedAssetIDs()))
}
