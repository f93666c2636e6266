package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"finge/pkg/finge"
)

type storageInfoResponse struct {
	DBName     string   `json:"db_name"`
	DBPath     string   `json:"db_path"`
	DBSize     int64    `json:"db_size"`
	DataDir    string   `json:"data_dir"`
	ImageStore string   `json:"image_store"`
	Available  []string `json:"available"`
}

func (h *handler) getStorageInfo(w http.ResponseWriter, r *http.Request) {
	dbPath := h.core.DBPath()
	dataDir := filepath.Dir(dbPath)

	var size int64
	if info, err := os.Stat(dbPath); err == nil {
		size = info.Size()
	}

	available, err := listDBFiles(dataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInternal, "list storage files", err))
		return
	}
	dbName := filepath.Base(dbPath)
	if !containsString(available, dbName) {
		available = append([]string{dbName}, available...)
	}

	writeJSON(w, http.StatusOK, storageInfoResponse{
		DBName:     dbName,
		DBPath:     dbPath,
		DBSize:     size,
		DataDir:    dataDir,
		ImageStore: h.imageStore,
		Available:  available,
	})
}

func listDBFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.EqualFold(filepath.Ext(name), ".db") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
