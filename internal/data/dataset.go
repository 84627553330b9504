// Package data implements the training data pipeline: directory
// datasets, image decoding and normalization, identity-balanced batch
// sampling and a batch loader.
package data

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Item is one image in a re-identification dataset.
type Item struct {
	Path  string
	PID   int32 // relabeled identity in [0, NumPIDs)
	CamID int
}

// Dataset is a list of labeled images with contiguous identity labels.
type Dataset struct {
	Items   []Item
	NumPIDs int
	NumCams int
}

// Filenames follow the <pid>_c<cam>... convention, e.g.
// 0002_c1s1_000451_03.jpg. PID -1 marks junk images.
var imagePattern = regexp.MustCompile(`^(-?\d+)_c(\d+)`)

// LoadDirectory parses a directory of images into a dataset. Identity
// labels are relabeled to a contiguous range; junk images (pid -1) and
// files that do not match the naming convention are skipped.
func LoadDirectory(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}

	type rawItem struct {
		path       string
		pid, camID int
	}
	var raw []rawItem
	pidSet := make(map[int]struct{})
	camSet := make(map[int]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}
		m := imagePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		pid, _ := strconv.Atoi(m[1])
		if pid == -1 {
			continue
		}
		camID, _ := strconv.Atoi(m[2])
		raw = append(raw, rawItem{path: filepath.Join(dir, entry.Name()), pid: pid, camID: camID})
		pidSet[pid] = struct{}{}
		camSet[camID] = struct{}{}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no images found in %q", dir)
	}

	pids := make([]int, 0, len(pidSet))
	for pid := range pidSet {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	relabel := make(map[int]int32, len(pids))
	for i, pid := range pids {
		relabel[pid] = int32(i)
	}

	ds := &Dataset{NumPIDs: len(pids), NumCams: len(camSet)}
	for _, r := range raw {
		ds.Items = append(ds.Items, Item{Path: r.path, PID: relabel[r.pid], CamID: r.camID})
	}
	return ds, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int { return len(d.Items) }
