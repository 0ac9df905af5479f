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

package core

import (
	"fmt"
	"strings"
)

// ValidateEntity checks that a stored entity record carries the fields the
// index depends on. Property contents are not checked here.
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if strings.TrimSpace(entity.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityID)
	}

	if strings.TrimSpace(entity.Schema) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptySchema)
	}

	return nil
}

// ValidateBatch rejects batches that carry no entries.
func ValidateBatch(batch Batch) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	return nil
}
