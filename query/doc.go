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

/*
Package query turns canonical entities and free text into structured match
queries, and entities into the index terms those queries are matched against.

Both sides share one tokenizer, so a clause built here always addresses the
same (field, value) pair the indexer wrote for an equal input.

# Fields

Every clause targets one index field:

	name              folded name tokens
	name_key          all name tokens, sorted and concatenated
	name_ngram        character trigrams of the name key (fuzzy only)
	identifier        compacted identifier value
	identifier_ngram  character trigrams of the identifier (fuzzy only)
	date              date prefix as supplied (YYYY, YYYY-MM or YYYY-MM-DD)
	country           lowercase country code
	phone             phone digits with a leading "+" when international
	email             lowercase address
	text              folded tokens of every other value

# Building

	b, err := query.NewBuilder(m, query.WithMaxPage(500))
	q, err := b.MatchQuery(dataset, entity, false, 5)

Building performs no I/O and is safe for concurrent use.
*/
package query
