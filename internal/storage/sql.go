package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time, 
                      uas_id, 
                      source, 
                      config) 
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    uas_id, 
    source, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    uas_id, 
    source, 
    config 
FROM sessions
ORDER BY start_time, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       latitude,
                       longitude,
                       altitude,
                       altitude_geodetic,
                       height,
                       ground_speed,
                       vertical_speed,
                       ground_course)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectTelemetryColumns = `
SELECT id,
       session_id,
       timestamp,
       latitude,
       longitude,
       altitude,
       altitude_geodetic,
       height,
       ground_speed,
       vertical_speed,
       ground_course
FROM telemetry
WHERE session_id = ?`

	selectLatestTelemetrySQL = selectTelemetryColumns + `
ORDER BY timestamp DESC, id DESC
LIMIT 1`

	selectTelemetrySQL = selectTelemetryColumns + `
ORDER BY timestamp, id`
)

//go:embed schema.sql
var initSchemaSQL string
