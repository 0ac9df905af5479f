// Copyright 2025 Poiesic Systems
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

// Package indexer loads entity records into the index.
//
// A source is a file of JSON lines, one entity per line, read from a local
// path or downloaded over http(s). Each record is cleaned against the model,
// turned into an index document and written in batches by a bounded worker
// pool:
//
//	idx, err := indexer.NewIndexer(repo, normalizer, builder,
//	    indexer.WithPoolSize(4),
//	    indexer.WithProgress(os.Stderr, 1000),
//	)
//	if err != nil {
//	    return err
//	}
//	defer idx.Release()
//	report, err := idx.Index(ctx, "https://example.com/entities.ftm.json", false)
//
// The source content hash is stored as the index version. A source whose
// hash matches the stored version is skipped unless force is set.
package indexer
