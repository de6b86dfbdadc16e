package persistence

import (
	"database/sql"
	"log/slog"

	"github.com/proxydec/proxy-list-worker/internal/model"
)

type RecordStorage interface {
	Save(*model.RecordMessage)
}

type RecordRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewRecordRepository(db *sql.DB, log *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, log: log}
}

// Save upserts on (ip, port): the same proxy reappears on every fetch
// cycle with fresher timing fields.
func (rr *RecordRepository) Save(rec *model.RecordMessage) {
	_, err := rr.db.Exec("INSERT INTO proxy_records (ip, port, country, protocol, anonymity, speed_ms, connection_time_ms, last_seen_seconds, source, page_url, proxy_url, worker_version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE country = VALUES(country), protocol = VALUES(protocol), anonymity = VALUES(anonymity), speed_ms = VALUES(speed_ms), connection_time_ms = VALUES(connection_time_ms), last_seen_seconds = VALUES(last_seen_seconds), source = VALUES(source), page_url = VALUES(page_url), proxy_url = VALUES(proxy_url), worker_version = VALUES(worker_version)",
		rec.IP,
		rec.Port,
		rec.Country,
		rec.Protocol,
		rec.Anonymity,
		rec.SpeedMs,
		rec.ConnectionTimeMs,
		rec.LastSeenSeconds,
		rec.Source,
		rec.PageURL,
		rec.ProxyURL,
		rec.WorkerVersion)
	if err != nil {
		rr.log.Error("failed to save proxy record to database.", slog.String("err", err.Error()))
		return
	}
	rr.log.Debug("proxy record saved to db.", slog.String("id", rec.ID()))
}
