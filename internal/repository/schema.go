package repository

import "fmt"

// Schema returns idempotent DDL for the event and outcome tables.
// ReplacingMergeTree gives last-write-wins upsert semantics on the
// natural keys: re-ingesting a row replaces it instead of duplicating.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.events (
			id String,
			ts DateTime64(3, 'UTC'),
			target String,
			embedding Array(Float64),
			text_digest String,
			version DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = ReplacingMergeTree(version) ORDER BY id`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.outcomes (
			target_id String,
			as_of DateTime64(3, 'UTC'),
			horizon String,
			realized_delta Float64,
			version DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = ReplacingMergeTree(version) ORDER BY (target_id, as_of, horizon)`, database),
	}
}
