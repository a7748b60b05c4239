package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"crawlops/pkg/log"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

const (
	sessionKeyPrefix = "session:" // session:<domain>:<name>
	reportKeyPrefix  = "report:"  // report:<run id>
	defaultName      = "default"
)

// BadgerStore implements the Store interface using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the database under dataDir
func NewBadgerStore(dataDir string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create data directory %s: %w", utils.ErrFilesystem, dataDir, err)
	}

	logger.Infof("Opening crawl database at: %s", dataDir)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dataDir).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dataDir, err)
	}

	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func sessionKey(domain, name string) []byte {
	if name == "" {
		name = defaultName
	}
	return []byte(sessionKeyPrefix + strings.ToLower(domain) + ":" + name)
}

// SaveSession implements the SessionStore interface
func (s *BadgerStore) SaveSession(session *models.Session) error {
	if session.Domain == "" {
		return fmt.Errorf("%w: session domain is required", utils.ErrDatabase)
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	key := sessionKey(session.Domain, session.Name)
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal session for '%s': %w", utils.ErrParsing, session.Domain, err)
	}

	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SaveSession: %v", err)
		return fmt.Errorf("%w: saving session '%s': %w", utils.ErrDatabase, string(key), err)
	}

	s.log.Debugf("Saved session '%s' for domain '%s'", session.Name, session.Domain)
	return nil
}

// LoadSession implements the SessionStore interface. When a domain holds
// several named sessions, the most recently updated non-expired one wins.
func (s *BadgerStore) LoadSession(domain string) (*models.Session, error) {
	sessions, err := s.sessionsForPrefix(sessionKeyPrefix + strings.ToLower(domain) + ":")
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: domain '%s'", utils.ErrSessionNotFound, domain)
	}

	now := time.Now().UTC()
	var best *models.Session
	for i := range sessions {
		if sessions[i].Expired(now) {
			continue
		}
		if best == nil || sessions[i].UpdatedAt.After(best.UpdatedAt) {
			best = &sessions[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: domain '%s'", utils.ErrSessionExpired, domain)
	}
	return best, nil
}

// ListSessions implements the SessionStore interface
func (s *BadgerStore) ListSessions() ([]models.Session, error) {
	sessions, err := s.sessionsForPrefix(sessionKeyPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Domain != sessions[j].Domain {
			return sessions[i].Domain < sessions[j].Domain
		}
		return sessions[i].Name < sessions[j].Name
	})
	return sessions, nil
}

// sessionsForPrefix decodes every session stored under the key prefix.
// Undecodable entries are logged and skipped rather than failing the scan.
func (s *BadgerStore) sessionsForPrefix(prefix string) ([]models.Session, error) {
	var sessions []models.Session
	prefixBytes := []byte(prefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			errValue := item.Value(func(val []byte) error {
				var session models.Session
				if errJson := json.Unmarshal(val, &session); errJson != nil {
					s.log.Warnf("Failed to unmarshal session for key '%s': %v. Skipping.", string(item.Key()), errJson)
					return nil
				}
				sessions = append(sessions, session)
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
	if err != nil {
		s.log.Errorf("DB View error scanning sessions: %v", err)
		return nil, fmt.Errorf("%w: scanning sessions: %w", utils.ErrDatabase, err)
	}
	return sessions, nil
}

// DeleteSession implements the SessionStore interface
func (s *BadgerStore) DeleteSession(domain string) (int, error) {
	prefix := []byte(sessionKeyPrefix + strings.ToLower(domain) + ":")
	deleted := 0

	err := s.dbUpdate(func(txn *badger.Txn) error {
		deleted = 0
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if errDel := txn.Delete(key); errDel != nil {
				return errDel
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		s.log.WithField("domain", domain).Errorf("DB Update error in DeleteSession: %v", err)
		return 0, fmt.Errorf("%w: deleting sessions for '%s': %w", utils.ErrDatabase, domain, err)
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: domain '%s'", utils.ErrSessionNotFound, domain)
	}

	s.log.Infof("Deleted %d session(s) for domain '%s'", deleted, domain)
	return deleted, nil
}

// DeleteExpired implements the SessionStore interface
func (s *BadgerStore) DeleteExpired() (int, error) {
	now := time.Now().UTC()
	prefix := []byte(sessionKeyPrefix)
	deleted := 0

	err := s.dbUpdate(func(txn *badger.Txn) error {
		deleted = 0
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		var expired [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			errValue := item.Value(func(val []byte) error {
				var session models.Session
				if errJson := json.Unmarshal(val, &session); errJson != nil {
					// Undecodable sessions are dead weight, collect them too
					expired = append(expired, key)
					return nil
				}
				if session.Expired(now) {
					expired = append(expired, key)
				}
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		it.Close()

		for _, key := range expired {
			if errDel := txn.Delete(key); errDel != nil {
				return errDel
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		s.log.Errorf("DB Update error in DeleteExpired: %v", err)
		return 0, fmt.Errorf("%w: deleting expired sessions: %w", utils.ErrDatabase, err)
	}

	if deleted > 0 {
		s.log.Infof("Deleted %d expired session(s)", deleted)
	}
	return deleted, nil
}

// SaveReport implements the ReportStore interface
func (s *BadgerStore) SaveReport(report *models.CrawlReport) error {
	if report.ID == "" {
		return fmt.Errorf("%w: report ID is required", utils.ErrDatabase)
	}
	key := []byte(reportKeyPrefix + report.ID)

	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal report '%s': %w", utils.ErrParsing, report.ID, err)
	}

	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SaveReport: %v", err)
		return fmt.Errorf("%w: saving report '%s': %w", utils.ErrDatabase, report.ID, err)
	}

	s.log.Debugf("Saved report '%s' (%d pages)", report.ID, len(report.Pages))
	return nil
}

// GetReport implements the ReportStore interface
func (s *BadgerStore) GetReport(id string) (*models.CrawlReport, error) {
	key := []byte(reportKeyPrefix + id)
	var report *models.CrawlReport

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: '%s'", utils.ErrReportNotFound, id)
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting report '%s': %w", utils.ErrDatabase, id, errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.CrawlReport
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				return fmt.Errorf("%w: failed to unmarshal report '%s': %w", utils.ErrParsing, id, errJson)
			}
			report = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports implements the ReportStore interface
func (s *BadgerStore) ListReports() ([]*models.CrawlReport, error) {
	var reports []*models.CrawlReport
	prefix := []byte(reportKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			errValue := item.Value(func(val []byte) error {
				var report models.CrawlReport
				if errJson := json.Unmarshal(val, &report); errJson != nil {
					s.log.Warnf("Failed to unmarshal report for key '%s': %v. Skipping.", string(item.Key()), errJson)
					return nil
				}
				reports = append(reports, &report)
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
	if err != nil {
		s.log.Errorf("DB View error scanning reports: %v", err)
		return nil, fmt.Errorf("%w: scanning reports: %w", utils.ErrDatabase, err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].FinishedAt.After(reports[j].FinishedAt)
	})
	return reports, nil
}

// DeleteReport implements the ReportStore interface
func (s *BadgerStore) DeleteReport(id string) error {
	key := []byte(reportKeyPrefix + id)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: '%s'", utils.ErrReportNotFound, id)
		}
		if errGet != nil {
			return errGet
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, utils.ErrReportNotFound) {
			return err
		}
		s.log.WithField("key", string(key)).Errorf("DB Update error in DeleteReport: %v", err)
		return fmt.Errorf("%w: deleting report '%s': %w", utils.ErrDatabase, id, err)
	}

	s.log.Infof("Deleted report '%s'", id)
	return nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Info("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			s.log.Debug("Running BadgerDB value log garbage collection...")
			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				// Run GC if log is at least 50% reclaimable space
				err = s.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
			}

			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Infof("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements the StoreAdmin interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		s.log.Info("Closing crawl database...")
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing crawl database: %v", err)
			return err
		}
		return nil
	}
	return nil
}
