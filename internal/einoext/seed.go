// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package einoext

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	"admin-assistant/internal/splitter"
	"admin-assistant/internal/storage/vector"
	"admin-assistant/pkg/log"
)

const seedBatchSize = 64

var seedSplitter = splitter.NewWordSplitter(splitter.DefaultMaxWords, splitter.DefaultOverlap)

// SeedRecord 种子文件中的一行（JSONL）
type SeedRecord struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Content    string `json:"content"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// LoadSeedFile 读取 JSONL 种子文件，向量化后写入内存向量库。返回写入条数。
func LoadSeedFile(ctx context.Context, path string, store vector.Store, embedder einoembed.Embedder, logger *log.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return LoadSeed(ctx, f, store, embedder, logger)
}

// LoadSeed 同 LoadSeedFile，从已打开的流读取；无效行跳过
func LoadSeed(ctx context.Context, r io.Reader, store vector.Store, embedder einoembed.Embedder, logger *log.Logger) (int, error) {
	logger = log.OrDefault(logger)
	byCollection := make(map[string][]SeedRecord)
	var order []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec SeedRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil || rec.Content == "" {
			logger.Warn("skip invalid seed line", "line", line, "error", err)
			continue
		}
		if rec.Collection == "" {
			rec.Collection = defaultCollection
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if _, ok := byCollection[rec.Collection]; !ok {
			order = append(order, rec.Collection)
		}
		byCollection[rec.Collection] = append(byCollection[rec.Collection], chunkRecord(rec)...)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}

	total := 0
	for _, coll := range order {
		recs := byCollection[coll]
		for start := 0; start < len(recs); start += seedBatchSize {
			end := min(start+seedBatchSize, len(recs))
			n, err := upsertBatch(ctx, coll, recs[start:end], store, embedder)
			if err != nil {
				return total, fmt.Errorf("seed collection %s: %w", coll, err)
			}
			total += n
		}
	}
	logger.Info("knowledge seed loaded", "documents", total, "collections", len(order))
	return total, nil
}

// chunkRecord 长文档切成多条记录，ID 追加 #序号，标题与链接保持不变
func chunkRecord(rec SeedRecord) []SeedRecord {
	chunks := seedSplitter.Split(rec.Content)
	if len(chunks) <= 1 {
		return []SeedRecord{rec}
	}
	out := make([]SeedRecord, len(chunks))
	for i, c := range chunks {
		out[i] = rec
		out[i].ID = fmt.Sprintf("%s#%d", rec.ID, i)
		out[i].Content = c
	}
	return out
}

func upsertBatch(ctx context.Context, coll string, recs []SeedRecord, store vector.Store, embedder einoembed.Embedder) (int, error) {
	texts := make([]string, len(recs))
	for i, r := range recs {
		texts[i] = r.Content
	}
	vecs, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vecs) != len(recs) || len(vecs) == 0 {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(recs))
	}
	if err := store.EnsureCollection(ctx, coll, len(vecs[0])); err != nil {
		return 0, err
	}
	batch := make([]*vector.Vector, len(recs))
	for i, r := range recs {
		meta := map[string]string{"content": r.Content}
		if r.Title != "" {
			meta["title"] = r.Title
		}
		if r.URL != "" {
			meta["url"] = r.URL
		}
		batch[i] = &vector.Vector{ID: r.ID, Values: vecs[i], Metadata: meta}
	}
	if err := store.Upsert(ctx, coll, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}
