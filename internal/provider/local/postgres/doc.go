// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores local provider accounts and password resets in
// PostgreSQL. The schema is managed by Migrator from embedded migrations.
package postgres
