package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Batch constants.
const (
	batchKeyPrefixLimit = 30
	errorResultPrefix   = "ERROR: "
)

// Audio file extensions recognized by ListAudioFiles.
var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
}

// BatchItem is one generation request within a sequential job list, plus an
// optional output-naming override.
type BatchItem struct {
	Text     string
	Language string
	Instruct string
	Filename string
}

// BatchGenerate processes items strictly in order with a fixed delay
// between successive calls. A failed item is recorded and never aborts the
// batch. The returned map has exactly one entry per item, keyed by a
// truncated prefix of the item's text; the value is the written file path
// or an error-tagged sentinel.
func (c *Client) BatchGenerate(
	ctx context.Context,
	items []BatchItem,
	outputDir string,
	delay time.Duration,
) (map[string]string, error) {
	dirErr := os.MkdirAll(outputDir, dirPermissions)
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create batch output directory: %w", dirErr)
	}

	c.log.Info("Starting batch generation: %d items, output: %s", len(items), outputDir)

	results := make(map[string]string, len(items))
	successCount := 0

	for index, item := range items {
		c.log.Info("Processing item %d/%d", index+1, len(items))

		key := batchKey(results, item.Text)

		path, err := c.generateBatchItem(ctx, item, outputDir)
		if err != nil {
			c.log.Error("Item %d failed: %v", index+1, err)

			results[key] = errorResultPrefix + err.Error()
		} else {
			results[key] = path
			successCount++
		}

		// Fixed pacing between items, skipped after the last one.
		if index < len(items)-1 && delay > 0 {
			time.Sleep(delay)
		}
	}

	c.log.Info("Batch generation complete: %d/%d succeeded", successCount, len(items))

	return results, nil
}

func (c *Client) generateBatchItem(ctx context.Context, item BatchItem, outputDir string) (string, error) {
	opts := GenerateOptions{
		Text:       item.Text,
		Language:   item.Language,
		Instruct:   item.Instruct,
		OutputFile: "",
	}

	if opts.Instruct == "" {
		opts.Instruct = DefaultInstruct
	}

	if item.Filename != "" {
		opts.OutputFile = filepath.Join(outputDir, item.Filename)
	} else {
		opts.OutputFile = filepath.Join(outputDir, DefaultFilename(item.Text, time.Now().Unix()))
	}

	return c.GenerateAudio(ctx, opts)
}

// batchKey derives the outcome-map key for an item: the first 30 runes of
// its text plus an ellipsis, suffixed when a previous item already claimed
// the same key so no outcome is lost.
func batchKey(results map[string]string, text string) string {
	runes := []rune(text)
	if len(runes) > batchKeyPrefixLimit {
		runes = runes[:batchKeyPrefixLimit]
	}

	key := string(runes) + "..."

	if _, taken := results[key]; !taken {
		return key
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s #%d", key, n)
		if _, taken := results[candidate]; !taken {
			return candidate
		}
	}
}

// ListAudioFiles enumerates audio files directly under the given directory,
// sorted lexicographically by path. Subdirectories are not descended into.
func (c *Client) ListAudioFiles(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", directory, err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := audioExtensions[ext]; !ok {
			continue
		}

		files = append(files, filepath.Join(directory, entry.Name()))
	}

	sort.Strings(files)

	return files, nil
}
