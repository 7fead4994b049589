package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mymiscarriage/apiserver/internal/storage"
	"github.com/mymiscarriage/apiserver/types"
)

const exportBatchSize = 100

// Export object metadata keys.
const (
	MetaTestimonyCount = "testimony-count"
	MetaExportedAt     = "exported-at"
)

// ObjectWriter is the part of object storage the exporter needs.
type ObjectWriter interface {
	Write(ctx context.Context, obj storage.Object) error
}

// ExportResult describes a written snapshot.
type ExportResult struct {
	Key   string
	Count int
}

// ExportService writes snapshots of published testimonies to object storage.
type ExportService struct {
	repo    TestimonyRepository
	objects ObjectWriter
	now     func() time.Time
}

func NewExportService(repo TestimonyRepository, objects ObjectWriter) *ExportService {
	return &ExportService{repo: repo, objects: objects, now: time.Now}
}

// ExportApproved pages through every approved testimony, newest first,
// and stores them as one JSON array.
func (s *ExportService) ExportApproved(ctx context.Context) (ExportResult, error) {
	approved := types.StatusApproved
	filter := types.TestimonyFilter{Status: &approved}

	all := make([]types.Testimony, 0)
	for offset := 0; ; offset += exportBatchSize {
		items, total, err := s.repo.List(ctx, filter, offset, exportBatchSize)
		if err != nil {
			return ExportResult{}, fmt.Errorf("list approved testimonies: %w", err)
		}
		all = append(all, items...)
		if len(items) < exportBatchSize || offset+len(items) >= total {
			break
		}
	}

	data, err := json.Marshal(all)
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode export: %w", err)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("exports/approved-%s.json", now.Format("20060102T150405Z"))
	err = s.objects.Write(ctx, storage.Object{
		Key:         key,
		Data:        data,
		ContentType: "application/json",
		Metadata: map[string]string{
			MetaTestimonyCount: strconv.Itoa(len(all)),
			MetaExportedAt:     now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("upload export: %w", err)
	}
	return ExportResult{Key: key, Count: len(all)}, nil
}
