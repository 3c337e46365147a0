package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
)

// DatastoreStore is a Google Cloud Datastore-backed FeedStore, grounded on
// the teacher's internal/database DatastoreDB.
type DatastoreStore struct {
	client *datastore.Client
}

type feedEntity struct {
	Link          string    `datastore:"link"`
	Title         string    `datastore:"title"`
	ETag          string    `datastore:"etag"`
	LastModified  string    `datastore:"last_modified"`
	UpdatedAt     time.Time `datastore:"updated_at"`
	EntryHashes   []string  `datastore:"entry_hashes,noindex"`
	ErrorCount    int       `datastore:"error_count"`
	NextCheckTime time.Time `datastore:"next_check_time"`
	Interval      int       `datastore:"interval_minutes"`
}

type subEntity struct {
	UserID int64  `datastore:"user_id"`
	FeedID int64  `datastore:"feed_id"`
	State  int    `datastore:"state"`
	Title  string `datastore:"title"`
	Notify bool   `datastore:"notify"`
	Lang   string `datastore:"lang"`
}

// OpenDatastoreStore dials Cloud Datastore for the given project.
func OpenDatastoreStore(ctx context.Context, projectID string) (*DatastoreStore, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("feed datastore: create client: %w", err)
	}
	return &DatastoreStore{client: client}, nil
}

func feedKey(id int) *datastore.Key {
	return datastore.IDKey("Feed", int64(id), nil)
}

func (d *DatastoreStore) GetByID(id int) (*Feed, error) {
	ctx := context.Background()
	var e feedEntity
	if err := d.client.Get(ctx, feedKey(id), &e); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("feed datastore: get %d: %w", id, err)
	}
	return fromFeedEntity(id, &e), nil
}

func (d *DatastoreStore) FilterIDs(ids []int) ([]*Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx := context.Background()
	keys := make([]*datastore.Key, len(ids))
	for i, id := range ids {
		keys[i] = feedKey(id)
	}

	entities := make([]feedEntity, len(keys))
	err := d.client.GetMulti(ctx, keys, entities)
	if err == nil {
		out := make([]*Feed, len(entities))
		for i, e := range entities {
			out[i] = fromFeedEntity(ids[i], &e)
		}
		return out, nil
	}

	multiErr, ok := err.(datastore.MultiError)
	if !ok {
		return nil, fmt.Errorf("feed datastore: get multi: %w", err)
	}
	out := make([]*Feed, 0, len(entities))
	for i, single := range multiErr {
		if single == nil {
			out = append(out, fromFeedEntity(ids[i], &entities[i]))
		}
	}
	return out, nil
}

func (d *DatastoreStore) Save(feed *Feed, fields UpdateFields) error {
	if !fields.Any() {
		return nil
	}
	ctx := context.Background()
	key := feedKey(feed.ID)

	var e feedEntity
	if err := d.client.Get(ctx, key, &e); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return ErrNotFound
		}
		return fmt.Errorf("feed datastore: get for save %d: %w", feed.ID, err)
	}

	if fields.ETag {
		e.ETag = feed.ETag
	}
	if fields.LastModified {
		e.LastModified = feed.LastModified
	}
	if fields.UpdatedAt {
		e.UpdatedAt = feed.UpdatedAt
	}
	if fields.EntryHashes {
		e.EntryHashes = append([]string(nil), feed.EntryHashes...)
	}
	if fields.ErrorCount {
		e.ErrorCount = feed.ErrorCount
	}
	if fields.NextCheckTime {
		e.NextCheckTime = feed.NextCheckTime
	}
	if fields.Title {
		e.Title = feed.Title
	}

	if _, err := d.client.Put(ctx, key, &e); err != nil {
		return fmt.Errorf("feed datastore: put %d: %w", feed.ID, err)
	}
	return nil
}

func (d *DatastoreStore) ActiveSubs(feedID int) ([]*Sub, error) {
	return d.querySubs(feedID, true)
}

func (d *DatastoreStore) AllSubs(feedID int) ([]*Sub, error) {
	return d.querySubs(feedID, false)
}

func (d *DatastoreStore) querySubs(feedID int, activeOnly bool) ([]*Sub, error) {
	ctx := context.Background()
	q := datastore.NewQuery("Sub").FilterField("feed_id", "=", int64(feedID))
	if activeOnly {
		q = q.FilterField("state", "=", 1)
	}

	var entities []subEntity
	if _, err := d.client.GetAll(ctx, q, &entities); err != nil {
		return nil, fmt.Errorf("feed datastore: query subs for feed %d: %w", feedID, err)
	}

	out := make([]*Sub, len(entities))
	for i, e := range entities {
		out[i] = &Sub{
			UserID: int(e.UserID),
			FeedID: int(e.FeedID),
			State:  e.State,
			Title:  e.Title,
			Notify: e.Notify,
			Lang:   e.Lang,
		}
	}
	return out, nil
}

// DueFeedIDs returns every feed id whose next_check_time has passed or is
// unset (the zero value sorts before any real timestamp).
func (d *DatastoreStore) DueFeedIDs(now time.Time) ([]int, error) {
	ctx := context.Background()
	q := datastore.NewQuery("Feed").FilterField("next_check_time", "<=", now).KeysOnly()
	keys, err := d.client.GetAll(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("feed datastore: query due feeds: %w", err)
	}
	ids := make([]int, len(keys))
	for i, k := range keys {
		ids[i] = int(k.ID)
	}
	return ids, nil
}

func (d *DatastoreStore) Close() error {
	return d.client.Close()
}

func fromFeedEntity(id int, e *feedEntity) *Feed {
	return &Feed{
		ID:            id,
		Link:          e.Link,
		Title:         e.Title,
		ETag:          e.ETag,
		LastModified:  e.LastModified,
		UpdatedAt:     e.UpdatedAt,
		EntryHashes:   append([]string(nil), e.EntryHashes...),
		ErrorCount:    e.ErrorCount,
		NextCheckTime: e.NextCheckTime,
		Interval:      e.Interval,
	}
}
