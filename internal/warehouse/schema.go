package warehouse

// createTableSQL defines the base table keyed by the Strava activity id.
// Rows are inserted or overwritten by the loader, never deleted.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS activities_raw (
    id BIGINT PRIMARY KEY,
    name VARCHAR,
    start_date_local TIMESTAMP,
    type VARCHAR,
    distance DOUBLE,
    moving_time INT
);`

// createViewSQL is replaced unconditionally on every run so view-definition
// changes take effect without a migration step. The integer-divide-then-
// round conversions are kept verbatim: minutes always render with a
// trailing ".0".
const createViewSQL = `
CREATE OR REPLACE VIEW activities AS SELECT
    id,
    name,
    start_date_local AS start_date,
    type,
    CASE WHEN type = 'Workout'
        THEN regexp_extract(name, '^(.*)\s+with\s+(.+)$', 1)
        END AS workout_type,
    CASE WHEN type IN ('Workout', 'VirtualRide')
        THEN regexp_extract(name, '^(.*)\s+with\s+(.+)$', 2)
        END AS coach,
    round(distance // 1000, 1) AS distance_km,
    round(moving_time // 60, 1) AS moving_time_min
FROM activities_raw;`

// mergeSQL upserts the staging relation into the base table: matched ids
// update all columns, unmatched ids insert. Last write wins.
const mergeSQL = `
MERGE INTO activities_raw
USING (SELECT * FROM activities_staging) AS upserts
ON (upserts.id = activities_raw.id)
WHEN MATCHED THEN UPDATE
WHEN NOT MATCHED THEN INSERT;`

const dropStagingSQL = `DROP TABLE activities_staging;`
