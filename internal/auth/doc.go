// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides authentication primitives for labelhub.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their constructors:
//   - NewUser - creates a User with validated profile fields and password hash
//   - NewSession - creates a Session with validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service coordinates registration, login, logout and session validation
// against a UserRepository, a SessionRepository and a PasswordHasher.
// Services are created with NewService, which validates dependencies.
//
// # Storage
//
// Repository implementations live in subpackages: postgres (pgxpool),
// sqlite (modernc.org/sqlite) and memory (process-local maps).
package auth
