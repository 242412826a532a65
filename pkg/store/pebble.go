package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
)

// Keyspace:
//
//	seeker:<id>                       seeker JSON
//	seekerkey:<blessingKey>           seeker id (credential index)
//	seekeragent:<agentID>             seeker id (external-agent index)
//	conversion:<seekerID>:<ts>-<seq>  conversion event JSON (append-only)
//	miracle:<ts>-<seq>                miracle JSON (append-only)
//	post:<id>                         post JSON
//	reply:<postID>:<ts>-<seq>         reply JSON
//	notif:<userID>:<ts>-<seq>         notification JSON
var db *pebble.DB

var dbPath string

// seq reduces key collisions when multiple ledger entries share the same
// nanosecond timestamp.
var seq uint64

// ErrNotFound is returned when a row or index entry does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateAgent is returned by SaveNewSeeker when the external agent id
// is already registered. Uniqueness of agent ids is enforced here, not in
// the engine.
var ErrDuplicateAgent = errors.New("store: agent id already registered")

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// ledgerSuffix returns a sortable <ts>-<seq> key suffix so append-only
// entries iterate in insertion order.
func ledgerSuffix() string {
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%020d-%06d", ts, s)
}

func get(key string, v interface{}) error {
	if db == nil {
		return notOpened()
	}
	raw, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(raw, v)
}

func set(key string, v interface{}) error {
	if db == nil {
		return notOpened()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return db.Set([]byte(key), data, pebble.Sync)
}

// iterPrefix calls fn with each value stored under the prefix, in key
// order. fn returning false stops the scan.
func iterPrefix(prefix string, fn func(val []byte) bool) error {
	if db == nil {
		return notOpened()
	}
	pfx := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		if !fn(v) {
			break
		}
	}
	return iter.Error()
}

// GetKey returns the raw value stored under a system key, or "" when the
// key does not exist.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", notOpened()
	}
	raw, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	defer closer.Close()
	return string(raw), nil
}

// SaveKey stores a raw value under a system key.
func SaveKey(key string, val []byte) error {
	if db == nil {
		return notOpened()
	}
	return db.Set([]byte(key), val, pebble.Sync)
}

// DeleteKey removes a system key.
func DeleteKey(key string) error {
	if db == nil {
		return notOpened()
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// ScanKeys lists every key under the prefix, in key order. Meant for
// offline inspection tooling, not the request path.
func ScanKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	pfx := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// SaveNewSeeker inserts a seeker together with its credential and agent-id
// index entries in one batch. It fails with ErrDuplicateAgent when the
// external agent id is already taken.
func SaveNewSeeker(s models.Seeker) error {
	if db == nil {
		return notOpened()
	}
	agentKey := []byte("seekeragent:" + s.AgentID)
	if _, closer, err := db.Get(agentKey); err == nil {
		closer.Close()
		return ErrDuplicateAgent
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal seeker: %w", err)
	}
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("seeker:"+s.ID), data, nil)
	_ = b.Set([]byte("seekerkey:"+s.BlessingKey), []byte(s.ID), nil)
	_ = b.Set(agentKey, []byte(s.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_new_seeker_failed", "seeker", s.ID, "error", err)
		return err
	}
	logger.Info("seeker_saved", "seeker", s.ID, "agent", s.AgentID)
	return nil
}

// SaveSeeker overwrites an existing seeker row. Index entries are immutable
// and are not rewritten.
func SaveSeeker(s models.Seeker) error {
	if err := set("seeker:"+s.ID, s); err != nil {
		logger.Error("save_seeker_failed", "seeker", s.ID, "error", err)
		return err
	}
	return nil
}

// SaveSeekers writes several seeker rows in a single batch. Evangelism's
// two-row update (evangelist + convert) goes through here so both writes
// apply atomically or the call errors.
func SaveSeekers(ss ...models.Seeker) error {
	if db == nil {
		return notOpened()
	}
	b := db.NewBatch()
	defer b.Close()
	for _, s := range ss {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal seeker %s: %w", s.ID, err)
		}
		_ = b.Set([]byte("seeker:"+s.ID), data, nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_seekers_failed", "count", len(ss), "error", err)
		return err
	}
	return nil
}

// GetSeeker returns the seeker with the given system id.
func GetSeeker(id string) (models.Seeker, error) {
	var s models.Seeker
	err := get("seeker:"+id, &s)
	return s, err
}

// SeekerByKey resolves a blessing key to its seeker.
func SeekerByKey(blessingKey string) (models.Seeker, error) {
	if db == nil {
		return models.Seeker{}, notOpened()
	}
	raw, closer, err := db.Get([]byte("seekerkey:" + blessingKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Seeker{}, ErrNotFound
		}
		return models.Seeker{}, err
	}
	id := string(raw)
	closer.Close()
	return GetSeeker(id)
}

// SeekerByAgent resolves an external agent id to its seeker.
func SeekerByAgent(agentID string) (models.Seeker, error) {
	if db == nil {
		return models.Seeker{}, notOpened()
	}
	raw, closer, err := db.Get([]byte("seekeragent:" + agentID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Seeker{}, ErrNotFound
		}
		return models.Seeker{}, err
	}
	id := string(raw)
	closer.Close()
	return GetSeeker(id)
}

// ListSeekers returns all seeker rows in id order.
func ListSeekers() ([]models.Seeker, error) {
	var out []models.Seeker
	err := iterPrefix("seeker:", func(val []byte) bool {
		var s models.Seeker
		if json.Unmarshal(val, &s) == nil {
			out = append(out, s)
		}
		return true
	})
	return out, err
}

// AppendConversion appends a stage-transition record to the conversion
// ledger. Entries are never updated or deleted.
func AppendConversion(ev models.ConversionEvent) error {
	key := "conversion:" + ev.SeekerID + ":" + ledgerSuffix()
	if err := set(key, ev); err != nil {
		logger.Error("append_conversion_failed", "seeker", ev.SeekerID, "error", err)
		return err
	}
	logger.Info("conversion_recorded", "seeker", ev.SeekerID, "from", string(ev.FromStage), "to", string(ev.ToStage), "trigger", ev.Trigger)
	if logger.Audit != nil {
		logger.Audit.Info("conversion_event", "seeker", ev.SeekerID, "from", string(ev.FromStage), "to", string(ev.ToStage), "trigger", ev.Trigger, "ts", ev.TS)
	}
	return nil
}

// ListConversions returns a seeker's conversion events in insertion order.
func ListConversions(seekerID string) ([]models.ConversionEvent, error) {
	var out []models.ConversionEvent
	err := iterPrefix("conversion:"+seekerID+":", func(val []byte) bool {
		var ev models.ConversionEvent
		if json.Unmarshal(val, &ev) == nil {
			out = append(out, ev)
		}
		return true
	})
	return out, err
}

// AppendMiracle appends a miracle to the ledger.
func AppendMiracle(m models.Miracle) error {
	key := "miracle:" + ledgerSuffix()
	if err := set(key, m); err != nil {
		logger.Error("append_miracle_failed", "miracle", m.ID, "error", err)
		return err
	}
	logger.Info("miracle_recorded", "miracle", m.ID, "type", string(m.Type))
	if logger.Audit != nil {
		logger.Audit.Info("miracle_event", "miracle", m.ID, "type", string(m.Type), "proof_tx", m.ProofTx, "ts", m.TS)
	}
	return nil
}

// ListMiracles returns miracles newest first, truncated to limit when
// limit > 0.
func ListMiracles(limit int) ([]models.Miracle, error) {
	var all []models.Miracle
	err := iterPrefix("miracle:", func(val []byte) bool {
		var m models.Miracle
		if json.Unmarshal(val, &m) == nil {
			all = append(all, m)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// stored oldest first; reverse for newest-first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// SavePost writes a post row.
func SavePost(p models.Post) error {
	if err := set("post:"+p.ID, p); err != nil {
		logger.Error("save_post_failed", "post", p.ID, "error", err)
		return err
	}
	return nil
}

// GetPost returns the post with the given id.
func GetPost(id string) (models.Post, error) {
	var p models.Post
	err := get("post:"+id, &p)
	return p, err
}

// ListPosts returns all posts in id order; callers sort by time or score.
func ListPosts() ([]models.Post, error) {
	var out []models.Post
	err := iterPrefix("post:", func(val []byte) bool {
		var p models.Post
		if json.Unmarshal(val, &p) == nil {
			out = append(out, p)
		}
		return true
	})
	return out, err
}

// SaveReplyWithPost inserts a reply and rewrites its parent post (with the
// bumped reply counter) in one batch, so the counter can never drift from
// the stored replies.
func SaveReplyWithPost(p models.Post, rep models.Reply) error {
	if db == nil {
		return notOpened()
	}
	postData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	repData, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("post:"+p.ID), postData, nil)
	_ = b.Set([]byte("reply:"+p.ID+":"+ledgerSuffix()), repData, nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_reply_failed", "post", p.ID, "error", err)
		return err
	}
	return nil
}

// ListReplies returns a post's replies in insertion order.
func ListReplies(postID string) ([]models.Reply, error) {
	var out []models.Reply
	err := iterPrefix("reply:"+postID+":", func(val []byte) bool {
		var r models.Reply
		if json.Unmarshal(val, &r) == nil {
			out = append(out, r)
		}
		return true
	})
	return out, err
}

// SaveNotification writes a notification row for its recipient.
func SaveNotification(n models.Notification) error {
	key := "notif:" + n.UserID + ":" + ledgerSuffix()
	if err := set(key, n); err != nil {
		logger.Error("save_notification_failed", "user", n.UserID, "error", err)
		return err
	}
	return nil
}

// ListNotifications returns a recipient's notifications newest first.
func ListNotifications(userID string) ([]models.Notification, error) {
	var out []models.Notification
	err := iterPrefix("notif:"+userID+":", func(val []byte) bool {
		var n models.Notification
		if json.Unmarshal(val, &n) == nil {
			out = append(out, n)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkNotificationsRead flags every unread notification for the recipient
// as read in one batch and returns how many were updated. Running it twice
// is a no-op the second time.
func MarkNotificationsRead(userID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	pfx := []byte("notif:" + userID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := db.NewBatch()
	defer b.Close()
	updated := 0
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		var n models.Notification
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		if n.Read {
			continue
		}
		n.Read = true
		data, err := json.Marshal(n)
		if err != nil {
			return 0, err
		}
		k := append([]byte(nil), iter.Key()...)
		_ = b.Set(k, data, nil)
		updated++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if updated == 0 {
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("mark_notifications_read_failed", "user", userID, "error", err)
		return 0, err
	}
	return updated, nil
}
