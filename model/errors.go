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

package model

import "errors"

var (
	// ErrInvalidModel indicates the model definition could not be loaded.
	ErrInvalidModel = errors.New("invalid model definition")

	// ErrUnknownType indicates a property refers to an undeclared type.
	ErrUnknownType = errors.New("unknown property type")

	// ErrUnknownHint indicates a type refers to an unsupported country hint rule.
	ErrUnknownHint = errors.New("unknown country hint rule")

	// ErrInheritanceCycle indicates a schema extends itself, directly or not.
	ErrInheritanceCycle = errors.New("schema inheritance cycle")
)
