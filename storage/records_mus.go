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

package storage

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
)

var (
	stringsMUS = ord.NewSliceSer[string](ord.String)
	valuesMUS  = ord.NewMapSer[string, []string](ord.String, stringsMUS)
	termsMUS   = ord.NewSliceSer[query.Term](TermMUS)
)

var (
	// EntityMUS encodes core.Entity values.
	EntityMUS mus.Serializer[core.Entity] = entityMUS{}

	// TermMUS encodes query.Term values.
	TermMUS mus.Serializer[query.Term] = termMUS{}

	// DocumentMUS encodes query.Document values. The entity must not be nil.
	DocumentMUS mus.Serializer[query.Document] = documentMUS{}

	// IndexStatusMUS encodes core.IndexStatus values with microsecond timestamps.
	IndexStatusMUS mus.Serializer[core.IndexStatus] = indexStatusMUS{}
)

type entityMUS struct{}

func (s entityMUS) Marshal(v core.Entity, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Schema, bs[n:])
	n += ord.String.Marshal(v.Caption, bs[n:])
	n += valuesMUS.Marshal(v.Properties, bs[n:])
	n += stringsMUS.Marshal(v.Datasets, bs[n:])
	n += stringsMUS.Marshal(v.Referents, bs[n:])
	return n + ord.Bool.Marshal(v.Target, bs[n:])
}

func (s entityMUS) Unmarshal(bs []byte) (v core.Entity, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Schema, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Caption, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Properties, n1, err = valuesMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Datasets, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Referents, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Target, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (s entityMUS) Size(v core.Entity) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Schema)
	size += ord.String.Size(v.Caption)
	size += valuesMUS.Size(v.Properties)
	size += stringsMUS.Size(v.Datasets)
	size += stringsMUS.Size(v.Referents)
	return size + ord.Bool.Size(v.Target)
}

func (s entityMUS) Skip(bs []byte) (n int, err error) {
	return skipAll(bs,
		ord.String.Skip, ord.String.Skip, ord.String.Skip,
		valuesMUS.Skip, stringsMUS.Skip, stringsMUS.Skip,
		ord.Bool.Skip)
}

type termMUS struct{}

func (s termMUS) Marshal(v query.Term, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.Field), bs)
	return n + ord.String.Marshal(v.Value, bs[n:])
}

func (s termMUS) Unmarshal(bs []byte) (v query.Term, n int, err error) {
	field, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Field = query.Field(field)
	var n1 int
	v.Value, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s termMUS) Size(v query.Term) (size int) {
	return ord.String.Size(string(v.Field)) + ord.String.Size(v.Value)
}

func (s termMUS) Skip(bs []byte) (n int, err error) {
	return skipAll(bs, ord.String.Skip, ord.String.Skip)
}

type documentMUS struct{}

func (s documentMUS) Marshal(v query.Document, bs []byte) (n int) {
	n = EntityMUS.Marshal(*v.Entity, bs)
	n += valuesMUS.Marshal(v.Filters, bs[n:])
	return n + termsMUS.Marshal(v.Terms, bs[n:])
}

func (s documentMUS) Unmarshal(bs []byte) (v query.Document, n int, err error) {
	entity, n, err := EntityMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Entity = &entity
	var (
		n1      int
		filters map[string][]string
	)
	filters, n1, err = valuesMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Filters = query.Filters(filters)
	v.Terms, n1, err = termsMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentMUS) Size(v query.Document) (size int) {
	size = EntityMUS.Size(*v.Entity)
	size += valuesMUS.Size(v.Filters)
	return size + termsMUS.Size(v.Terms)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	return skipAll(bs, EntityMUS.Skip, valuesMUS.Skip, termsMUS.Skip)
}

type indexStatusMUS struct{}

func (s indexStatusMUS) Marshal(v core.IndexStatus, bs []byte) (n int) {
	n = ord.String.Marshal(v.Version, bs)
	n += varint.Int.Marshal(v.EntityCount, bs[n:])
	return n + varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
}

func (s indexStatusMUS) Unmarshal(bs []byte) (v core.IndexStatus, n int, err error) {
	v.Version, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.EntityCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s indexStatusMUS) Size(v core.IndexStatus) (size int) {
	size = ord.String.Size(v.Version)
	size += varint.Int.Size(v.EntityCount)
	return size + varint.Int64.Size(v.UpdatedAt.UnixMicro())
}

func (s indexStatusMUS) Skip(bs []byte) (n int, err error) {
	return skipAll(bs, ord.String.Skip, varint.Int.Skip, varint.Int64.Skip)
}

// skipAll runs field skippers in order and returns the total bytes skipped.
func skipAll(bs []byte, skippers ...func([]byte) (int, error)) (n int, err error) {
	for _, skip := range skippers {
		var n1 int
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
