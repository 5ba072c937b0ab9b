package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/gpstrack/internal/domain"
)

// timestampLayout is fixed width and always UTC so that text comparison in
// SQL orders the same way as time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// CreateWithObjects stores one detection event and its objects atomically.
func (s *EventStore) CreateWithObjects(ctx context.Context, camID string, ts time.Time, imgPath string, objects []domain.DetectedObject) (*domain.DetectionEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO detection_events (cam_id, timestamp, img_path) VALUES (?, ?, ?)
	`, camID, formatTimestamp(ts), imgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection event: %w", err)
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detected_objects (detection_event_id, obj_id, type, lat, lng, objective, size, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare object statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	stored := make([]domain.DetectedObject, 0, len(objects))
	for _, obj := range objects {
		details, err := encodeDetails(obj.Details)
		if err != nil {
			return nil, err
		}
		lat, lng := domain.RoundCoordinate(obj.Lat), domain.RoundCoordinate(obj.Lng)

		res, err := stmt.ExecContext(ctx, eventID, obj.ObjID, obj.Type, lat, lng, obj.Objective, obj.Size, details)
		if err != nil {
			return nil, fmt.Errorf("failed to create detected object: %w", err)
		}
		objID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}

		obj.ID = objID
		obj.DetectionEventID = eventID
		obj.Lat, obj.Lng = lat, lng
		stored = append(stored, obj)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit detection event: %w", err)
	}

	return &domain.DetectionEvent{
		ID:        eventID,
		CamID:     camID,
		Timestamp: ts.UTC(),
		ImgPath:   imgPath,
		Objects:   stored,
	}, nil
}

// ListSince returns the camera's events with timestamp at or after since,
// newest first, each with its objects.
func (s *EventStore) ListSince(ctx context.Context, camID string, since time.Time) ([]*domain.DetectionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cam_id, timestamp, img_path, created_at FROM detection_events
		WHERE cam_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC
	`, camID, formatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list detection events: %w", err)
	}
	defer closeRows(rows)

	events := []*domain.DetectionEvent{}
	byID := make(map[int64]*domain.DetectionEvent)
	for rows.Next() {
		ev := &domain.DetectionEvent{Objects: []domain.DetectedObject{}}
		var ts string
		if err := rows.Scan(&ev.ID, &ev.CamID, &ts, &ev.ImgPath, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}
		if ev.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		events = append(events, ev)
		byID[ev.ID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection events: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}

	objRows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.detection_event_id, o.obj_id, o.type, o.lat, o.lng, o.objective, o.size, o.details
		FROM detected_objects o
		JOIN detection_events e ON e.id = o.detection_event_id
		WHERE e.cam_id = ? AND e.timestamp >= ?
		ORDER BY o.id ASC
	`, camID, formatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list detected objects: %w", err)
	}
	defer closeRows(objRows)

	for objRows.Next() {
		var obj domain.DetectedObject
		var details sql.NullString
		if err := objRows.Scan(&obj.ID, &obj.DetectionEventID, &obj.ObjID, &obj.Type, &obj.Lat, &obj.Lng,
			&obj.Objective, &obj.Size, &details); err != nil {
			return nil, fmt.Errorf("failed to scan detected object: %w", err)
		}
		if obj.Details, err = decodeDetails(details); err != nil {
			return nil, err
		}
		if ev, ok := byID[obj.DetectionEventID]; ok {
			ev.Objects = append(ev.Objects, obj)
		}
	}
	if err := objRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detected objects: %w", err)
	}

	return events, nil
}

// DeleteByCamera removes a camera's objects and events and returns the
// number of events removed. The camera record is kept.
func (s *EventStore) DeleteByCamera(ctx context.Context, camID string) (int64, error) {
	return s.deleteEvents(ctx,
		`DELETE FROM detected_objects WHERE detection_event_id IN (SELECT id FROM detection_events WHERE cam_id = ?)`,
		`DELETE FROM detection_events WHERE cam_id = ?`,
		camID)
}

// DeleteAll removes every object and event. Cameras are kept.
func (s *EventStore) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleteEvents(ctx,
		`DELETE FROM detected_objects`,
		`DELETE FROM detection_events`)
}

func (s *EventStore) deleteEvents(ctx context.Context, objectsQuery, eventsQuery string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, objectsQuery, args...); err != nil {
		return 0, fmt.Errorf("failed to delete detected objects: %w", err)
	}

	result, err := tx.ExecContext(ctx, eventsQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete detection events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n, nil
}

// encodeDetails stores an empty map as NULL.
func encodeDetails(details map[string]any) (sql.NullString, error) {
	if len(details) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode object details: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeDetails(details sql.NullString) (map[string]any, error) {
	if !details.Valid || details.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(details.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode object details: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
