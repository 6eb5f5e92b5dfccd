package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// JobArchive keeps an immutable JSON copy of every job result in object
// storage, one object per run.
type JobArchive struct {
	store  ObjectStorage
	prefix string
}

func NewJobArchive(store ObjectStorage, prefix string) *JobArchive {
	return &JobArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a result: prefix/YYYY/MM/DD/<type>-<id>.json.
func (a *JobArchive) Key(res *domain.ScheduledJobResult) string {
	day := res.StartedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, fmt.Sprintf("%s-%s.json", res.JobType, res.ID))
}

func (a *JobArchive) Archive(ctx context.Context, res *domain.ScheduledJobResult) error {
	if a == nil || a.store == nil || res == nil {
		return nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode job result %s: %w", res.ID, err)
	}
	return a.store.UploadObject(ctx, a.Key(res), payload)
}

// Load reads back every archived result under the given day prefix
// ("2025/06/01", "2025/06" or empty for all), ordered by key.
func (a *JobArchive) Load(ctx context.Context, dayPrefix string) ([]domain.ScheduledJobResult, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	objects, err := a.store.ListObjects(ctx, path.Join(a.prefix, dayPrefix))
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	results := make([]domain.ScheduledJobResult, 0, len(objects))
	for _, obj := range objects {
		data, err := a.store.GetObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		var res domain.ScheduledJobResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("decode archived result %s: %w", obj.Key, err)
		}
		results = append(results, res)
	}
	return results, nil
}
