package comfy

import (
	"sort"
	"strconv"
	"strings"
)

// FileRef identifies a file held by the engine.
type FileRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput lists the files one node produced, bucketed by media kind.
type NodeOutput struct {
	Videos []FileRef `json:"videos"`
	Gifs   []FileRef `json:"gifs"`
	Files  []FileRef `json:"files"`
	Images []FileRef `json:"images"`
}

// HistoryEntry is the engine's completion record for one job.
type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
}

var videoExtensions = []string{".mp4", ".mov", ".webm", ".mkv", ".gif"}

// IsVideoFilename reports whether the filename carries a known video extension.
func IsVideoFilename(name string) bool {
	lowered := strings.ToLower(name)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}

// SelectArtifact picks the single artifact to retrieve from a finished job:
// the first video file found wins over any other media; failing that, the
// first non-video file encountered. Nodes are scanned in ascending node-id
// order and buckets in a fixed order, so selection is stable regardless of
// how the engine serialized its output map.
func (e *HistoryEntry) SelectArtifact() (FileRef, bool) {
	if e == nil || len(e.Outputs) == 0 {
		return FileRef{}, false
	}

	var backup *FileRef
	for _, nodeID := range sortedNodeIDs(e.Outputs) {
		output := e.Outputs[nodeID]
		for _, bucket := range [][]FileRef{output.Videos, output.Gifs, output.Files, output.Images} {
			for i := range bucket {
				ref := bucket[i]
				if ref.Filename == "" {
					continue
				}
				if IsVideoFilename(ref.Filename) {
					return ref, true
				}
				if backup == nil {
					backup = &ref
				}
			}
		}
	}
	if backup != nil {
		return *backup, true
	}
	return FileRef{}, false
}

// sortedNodeIDs orders ids numerically when possible (engine node ids are
// stringified integers) and lexically otherwise.
func sortedNodeIDs(outputs map[string]NodeOutput) []string {
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		left, leftErr := strconv.Atoi(ids[i])
		right, rightErr := strconv.Atoi(ids[j])
		if leftErr == nil && rightErr == nil {
			return left < right
		}
		if leftErr == nil {
			return true
		}
		if rightErr == nil {
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}
