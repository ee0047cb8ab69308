// Package db embeds the order log schema.
package db

import _ "embed"

// Schema creates the customer_orders table. Every statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
