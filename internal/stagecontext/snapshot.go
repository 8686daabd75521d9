package stagecontext

import (
	"context"
	"fmt"
	"path/filepath"

	"baton/internal/fileutil"
	"baton/internal/stage"
)

// SnapshotPath is where a stage's context is persisted for a campaign.
func SnapshotPath(campaignDir string, id stage.ID) string {
	return filepath.Join(campaignDir, "docs", id.String()+"-context.json")
}

// WriteSnapshot persists sc under campaignDir/docs and returns the path.
func WriteSnapshot(ctx context.Context, store *fileutil.Store, campaignDir string, sc Context) (string, error) {
	if sc == nil {
		return "", fmt.Errorf("write snapshot: nil context")
	}
	path := SnapshotPath(campaignDir, sc.StageID())
	if _, err := store.WriteJSON(ctx, path, sc); err != nil {
		return "", fmt.Errorf("write %s snapshot: %w", sc.StageID(), err)
	}
	return path, nil
}

// LoadSnapshot reads a persisted stage context.
func LoadSnapshot[T Context](ctx context.Context, store *fileutil.Store, path string) (T, error) {
	var out T
	if err := store.ReadJSON(ctx, path, &out); err != nil {
		return out, err
	}
	return out, nil
}
